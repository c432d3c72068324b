package ledger

import (
	"fmt"
	"strings"
	"sync"
)

// Package ledger tracks which (target, post) pairs have already been handled
// so a post is never delivered to the same target twice.
//
// Entries move through three states: unclaimed -> claimed -> delivered.
// Claims exist only for the duration of a cycle's downloads; delivered
// entries are permanent (and survive restarts with the bbolt backend).

// Ledger is the delivery record shared by the dispatch planner and the
// download scheduler.
type Ledger interface {
	// Claim reserves the pair for download. It returns false when the pair
	// is already claimed or delivered.
	Claim(target, postID string) (bool, error)
	// Promote marks a claimed pair as delivered.
	Promote(target, postID string) error
	// Revert releases a claim so the pair can be retried on a later cycle.
	Revert(target, postID string) error
	// Delivered reports whether the pair has been successfully delivered.
	Delivered(target, postID string) (bool, error)
	Close() error
}

// New creates the configured ledger backend.
func New(typ, path string) (Ledger, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))

	switch typ {
	case "", "memory":
		return NewMemory(), nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt ledger requires a path")
		}
		return openBolt(path)
	default:
		return nil, fmt.Errorf("unsupported ledger type %q", typ)
	}
}

// pairKey builds the composite key for a (target, post) pair. The separator
// cannot occur in target names or reddit post ids.
func pairKey(target, postID string) string {
	return target + "\x00" + postID
}

// memoryLedger keeps all state in process memory. Used in tests and when no
// persistence across restarts is wanted.
type memoryLedger struct {
	mu        sync.Mutex
	claimed   map[string]bool
	delivered map[string]bool
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() Ledger {
	return &memoryLedger{
		claimed:   make(map[string]bool),
		delivered: make(map[string]bool),
	}
}

func (m *memoryLedger) Claim(target, postID string) (bool, error) {
	key := pairKey(target, postID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.claimed[key] || m.delivered[key] {
		return false, nil
	}
	m.claimed[key] = true
	return true, nil
}

func (m *memoryLedger) Promote(target, postID string) error {
	key := pairKey(target, postID)

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.claimed, key)
	m.delivered[key] = true
	return nil
}

func (m *memoryLedger) Revert(target, postID string) error {
	key := pairKey(target, postID)

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.claimed, key)
	return nil
}

func (m *memoryLedger) Delivered(target, postID string) (bool, error) {
	key := pairKey(target, postID)

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.delivered[key], nil
}

func (m *memoryLedger) Close() error { return nil }
