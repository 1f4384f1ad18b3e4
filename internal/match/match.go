// Package match decides whether an ingredient mention refers to an
// already-known canonical ingredient or requires a new one.
package match

import (
	"context"

	"github.com/recipedex/backend/internal/canonical"
)

// Status classifies a match decision.
type Status string

const (
	StatusExisting Status = "existing"
	StatusNew      Status = "new"
)

// DefaultThreshold is the cosine similarity cutoff above which a
// near-miss is treated as the same ingredient.
const DefaultThreshold = 0.92

// NearestIndex is the part of the embedding index the matcher needs.
type NearestIndex interface {
	Nearest(ctx context.Context, query string) (string, float64, error)
}

// Decision is the outcome of MatchOrCreate. It is consumed by the
// pipeline's aggregation step and never persisted directly.
type Decision struct {
	Status Status
	Name   string
	Score  float64
}

// MatchOrCreate canonicalizes name and classifies it against the known
// ingredient set. Exact canonical membership short-circuits the index
// lookup at score 1.0; otherwise the nearest neighbor wins when its
// similarity reaches the threshold.
func MatchOrCreate(ctx context.Context, name string, existing map[string]struct{}, index NearestIndex, threshold float64) (Decision, error) {
	can := canonical.Canonicalize(name)
	if _, ok := existing[can]; ok {
		return Decision{Status: StatusExisting, Name: can, Score: 1.0}, nil
	}

	nearest, score, err := index.Nearest(ctx, can)
	if err != nil {
		return Decision{}, err
	}
	if nearest != "" && score >= threshold {
		return Decision{Status: StatusExisting, Name: nearest, Score: score}, nil
	}
	return Decision{Status: StatusNew, Name: can, Score: score}, nil
}
