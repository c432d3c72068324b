package engine

import (
	"context"

	"github.com/wallwatch/wallwatch/internal/domain"
	"github.com/wallwatch/wallwatch/internal/logger"
)

// aggregate fetches every distinct subscribed source exactly once and keys
// the results by source name. A failing source is skipped for this cycle;
// the rest still deliver.
func (s *Service) aggregate(ctx context.Context, stats *CycleStats) map[string][]domain.Post {
	candidates := make(map[string][]domain.Post)

	for _, src := range s.profile.SubscribedSources() {
		if ctx.Err() != nil {
			break
		}

		posts, err := s.fetcher.Fetch(ctx, src)
		if err != nil {
			stats.SourcesFailed++
			logger.ErrorObj("source fetch failed", "fetch_error", map[string]any{
				"source": src.Name,
				"error":  err.Error(),
			})
			continue
		}

		stats.SourcesFetched++
		stats.Candidates += len(posts)
		candidates[src.Name] = posts
	}

	return candidates
}
