package engine

import (
	"context"
	"sync"

	"github.com/wallwatch/wallwatch/internal/domain"
	"github.com/wallwatch/wallwatch/internal/logger"
)

// execute runs the planned obligations with at most profile.MaxDownloads
// transfers in flight. Obligations never started because the context was
// cancelled get their claims reverted so a later cycle can retry them.
func (s *Service) execute(ctx context.Context, plan []domain.Obligation, stats *CycleStats) {
	if len(plan) == 0 {
		return
	}

	sem := make(chan struct{}, s.profile.MaxDownloads)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, ob := range plan {
		select {
		case <-ctx.Done():
			s.revertClaim(ob, ctx.Err())
			mu.Lock()
			stats.Failed++
			mu.Unlock()
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(ob domain.Obligation) {
			defer wg.Done()
			defer func() { <-sem }()

			if s.runObligation(ctx, ob) {
				mu.Lock()
				stats.Downloaded++
				mu.Unlock()
			} else {
				mu.Lock()
				stats.Failed++
				mu.Unlock()
			}
		}(ob)
	}

	wg.Wait()
}

// runObligation downloads one image, saves it under the target path, then
// promotes the claim and emits the delivery event. Any failure before the
// promote reverts the claim.
func (s *Service) runObligation(ctx context.Context, ob domain.Obligation) bool {
	data, ext, err := s.store.Fetch(ctx, ob.Post.URL)
	if err != nil {
		s.revertClaim(ob, err)
		return false
	}

	path, err := s.store.Save(ob.TargetPath, ob.Post.ID, ext, data)
	if err != nil {
		s.revertClaim(ob, err)
		return false
	}

	if err := s.ledger.Promote(ob.TargetName, ob.Post.ID); err != nil {
		// The file is on disk; a failed promote only risks a duplicate
		// download on the next cycle.
		logger.WarnObj("claim promote failed", "ledger_error", map[string]any{
			"target":  ob.TargetName,
			"post_id": ob.Post.ID,
			"error":   err.Error(),
		})
	}

	logger.InfoObj("wallpaper delivered", "delivery", map[string]any{
		"target":  ob.TargetName,
		"post_id": ob.Post.ID,
		"file":    path,
	})

	s.publishDelivery(ctx, ob, path)
	return true
}

func (s *Service) revertClaim(ob domain.Obligation, cause error) {
	if err := s.ledger.Revert(ob.TargetName, ob.Post.ID); err != nil {
		logger.ErrorObj("claim revert failed", "ledger_error", map[string]any{
			"target":  ob.TargetName,
			"post_id": ob.Post.ID,
			"error":   err.Error(),
		})
	}
	logger.WarnObj("download failed", "download_error", map[string]any{
		"target":  ob.TargetName,
		"post_id": ob.Post.ID,
		"url":     ob.Post.URL,
		"error":   cause.Error(),
	})
}
