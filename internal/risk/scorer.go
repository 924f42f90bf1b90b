// Package risk scores a target contract from two angles: static findings in
// its verified source (internal score) and its external protocol dependency
// surface (dependency score). The combined score uses fixed weights, 0.4
// internal and 0.6 dependency.
package risk

import (
	"context"

	"github.com/chainops/launchgate/internal/domain"
)

// Scorer is the capability interface the pipeline consumes. Implementations
// must be deterministic for a given address so the cached artifact can be
// reused indefinitely.
type Scorer interface {
	Score(ctx context.Context, address string) (*domain.RiskArtifact, error)
}

// Combine applies the fixed internal/dependency weighting.
func Combine(internal, dependency float64) float64 {
	return domain.InternalWeight*internal + domain.DependencyWeight*dependency
}
