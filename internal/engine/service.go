package engine

import (
	"context"
	"fmt"

	"github.com/wallwatch/wallwatch/internal/domain"
	"github.com/wallwatch/wallwatch/internal/ledger"
	"github.com/wallwatch/wallwatch/internal/logger"
	"github.com/wallwatch/wallwatch/pkg/publishers"
	"github.com/wallwatch/wallwatch/pkg/sources"
	"github.com/wallwatch/wallwatch/pkg/wallconfig"
)

// ImageStore fetches image bytes and persists them into a target directory.
// Implemented by internal/download.Downloader.
type ImageStore interface {
	Fetch(ctx context.Context, url string) (data []byte, ext string, err error)
	Save(dir, postID, ext string, data []byte) (path string, err error)
}

// EventSink receives an event for every delivered wallpaper.
// Implemented by publishers.Fanout.
type EventSink interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Service runs one polling cycle: aggregate candidates, plan obligations,
// execute downloads.
type Service struct {
	profile *wallconfig.Profile
	fetcher sources.Fetcher
	ledger  ledger.Ledger
	store   ImageStore
	sink    EventSink
}

// NewService wires the cycle engine.
func NewService(profile *wallconfig.Profile, fetcher sources.Fetcher, seen ledger.Ledger, store ImageStore, sink EventSink) *Service {
	return &Service{
		profile: profile,
		fetcher: fetcher,
		ledger:  seen,
		store:   store,
		sink:    sink,
	}
}

// CycleStats summarizes one cycle for logging.
type CycleStats struct {
	SourcesFetched int
	SourcesFailed  int
	Candidates     int
	Obligations    int
	Downloaded     int
	Failed         int
}

// RunCycle executes a full aggregate-plan-download pass. Per-source and
// per-obligation failures are reported in the stats, not returned: only a
// broken engine setup is an error.
func (s *Service) RunCycle(ctx context.Context) (CycleStats, error) {
	if s == nil || s.profile == nil || s.fetcher == nil || s.ledger == nil || s.store == nil {
		return CycleStats{}, fmt.Errorf("engine service is not initialized")
	}

	var stats CycleStats

	candidates := s.aggregate(ctx, &stats)
	plan := s.plan(candidates, &stats)
	s.execute(ctx, plan, &stats)

	logger.InfoObj("cycle completed", "cycle_stats", map[string]any{
		"sources_fetched": stats.SourcesFetched,
		"sources_failed":  stats.SourcesFailed,
		"candidates":      stats.Candidates,
		"obligations":     stats.Obligations,
		"downloaded":      stats.Downloaded,
		"failed":          stats.Failed,
	})
	return stats, nil
}

// publishDelivery fans the event out; sink failures never fail the obligation.
func (s *Service) publishDelivery(ctx context.Context, ob domain.Obligation, filePath string) {
	if s.sink == nil {
		return
	}
	if _, err := s.sink.Publish(ctx, publishers.NewEvent(ob, filePath)); err != nil {
		logger.WarnObj("delivery event publish failed", "publish_error", map[string]any{
			"target":  ob.TargetName,
			"post_id": ob.Post.ID,
			"error":   err.Error(),
		})
	}
}
