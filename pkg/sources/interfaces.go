package sources

import (
	"context"

	"github.com/wallwatch/wallwatch/internal/domain"
	"github.com/wallwatch/wallwatch/pkg/wallconfig"
)

// Fetcher turns a configured source into the candidate posts it currently
// offers. Implementations return a finite batch per call; a failed call
// contributes nothing for the cycle and must not be treated as fatal by
// callers.
type Fetcher interface {
	Fetch(ctx context.Context, src wallconfig.Source) ([]domain.Post, error)
}
