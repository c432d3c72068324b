package engine

import (
	"github.com/wallwatch/wallwatch/internal/domain"
	"github.com/wallwatch/wallwatch/internal/geometry"
	"github.com/wallwatch/wallwatch/internal/logger"
)

// plan walks targets in name order and, per target, its subscriptions in
// declaration order, claiming each acceptable post before emitting an
// obligation. Claims are per (target, post) pair: a post cross-posted into
// two sources the same target follows is emitted once, while two targets
// sharing one source each get their own obligation.
func (s *Service) plan(candidates map[string][]domain.Post, stats *CycleStats) []domain.Obligation {
	var obligations []domain.Obligation

	for _, target := range s.profile.Targets() {
		spec := geometry.Spec{
			Width:     target.Width,
			Height:    target.Height,
			Tolerance: target.Tolerance,
		}

		for _, srcName := range target.Sources {
			for _, post := range candidates[srcName] {
				delivered, err := s.ledger.Delivered(target.Name, post.ID)
				if err != nil {
					s.logPlanError(target.Name, post.ID, err)
					continue
				}
				if delivered {
					continue
				}

				if post.NSFW && !target.AllowNSFW {
					continue
				}

				ok, err := geometry.Fits(post.Width, post.Height, spec)
				if err != nil {
					s.logPlanError(target.Name, post.ID, err)
					continue
				}
				if !ok {
					continue
				}

				claimed, err := s.ledger.Claim(target.Name, post.ID)
				if err != nil {
					s.logPlanError(target.Name, post.ID, err)
					continue
				}
				if !claimed {
					continue
				}

				obligations = append(obligations, domain.Obligation{
					TargetName: target.Name,
					TargetPath: target.Path,
					Post:       post,
				})
			}
		}
	}

	stats.Obligations = len(obligations)
	return obligations
}

func (s *Service) logPlanError(target, postID string, err error) {
	logger.ErrorObj("planning skipped a post", "plan_error", map[string]any{
		"target":  target,
		"post_id": postID,
		"error":   err.Error(),
	})
}
