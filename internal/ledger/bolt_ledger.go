package ledger

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	deliveredBucket  = "delivered"
	deliveredAtBytes = 8
)

// boltLedger persists delivered pairs in BoltDB. Claims are held only in
// memory: a process crash or forced shutdown therefore releases them, which
// is exactly the revert-on-abandon behavior the scheduler relies on.
type boltLedger struct {
	db *bolt.DB

	mu      sync.Mutex
	claimed map[string]bool
}

// openBolt initializes a BoltDB-backed Ledger.
func openBolt(path string) (Ledger, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(deliveredBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return &boltLedger{
		db:      db,
		claimed: make(map[string]bool),
	}, nil
}

// Close closes the BoltDB store.
func (b *boltLedger) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Claim reserves the pair unless it is already claimed or delivered.
func (b *boltLedger) Claim(target, postID string) (bool, error) {
	key := pairKey(target, postID)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.claimed[key] {
		return false, nil
	}

	delivered, err := b.lookupDelivered(key)
	if err != nil {
		return false, err
	}
	if delivered {
		return false, nil
	}

	b.claimed[key] = true
	return true, nil
}

// Promote records the pair as delivered and releases its claim.
func (b *boltLedger) Promote(target, postID string) error {
	key := pairKey(target, postID)

	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(deliveredBucket))
		if bucket == nil {
			return fmt.Errorf("delivered bucket missing")
		}
		buf := make([]byte, deliveredAtBytes)
		binary.BigEndian.PutUint64(buf, uint64(time.Now().Unix()))
		return bucket.Put([]byte(key), buf)
	})
	if err != nil {
		return err
	}

	delete(b.claimed, key)
	return nil
}

// Revert releases the claim without recording a delivery.
func (b *boltLedger) Revert(target, postID string) error {
	key := pairKey(target, postID)

	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.claimed, key)
	return nil
}

// Delivered reports whether the pair has been persisted as delivered.
func (b *boltLedger) Delivered(target, postID string) (bool, error) {
	key := pairKey(target, postID)

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.lookupDelivered(key)
}

// lookupDelivered must be called with b.mu held.
func (b *boltLedger) lookupDelivered(key string) (bool, error) {
	var exists bool
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(deliveredBucket))
		if bucket == nil {
			return fmt.Errorf("delivered bucket missing")
		}
		exists = bucket.Get([]byte(key)) != nil
		return nil
	})
	return exists, err
}
