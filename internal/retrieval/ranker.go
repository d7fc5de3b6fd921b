// Package retrieval runs similarity searches against a vector store and
// enforces the ranking contract on what comes back.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"document-qa/internal/metrics"
	"document-qa/internal/models"
)

var (
	ErrInvalidParams    = errors.New("invalid search parameters")
	ErrStoreUnavailable = errors.New("vector store unavailable")
)

// Querier is the similarity query of a vector store. Results are expected in
// descending similarity order, filtered by threshold.
type Querier interface {
	Query(ctx context.Context, embedding []float32, threshold float64, limit int) ([]models.RetrievedCandidate, error)
}

type Ranker struct {
	store   Querier
	metrics metrics.Recorder
}

type Option func(*Ranker)

func WithMetrics(m metrics.Recorder) Option {
	return func(r *Ranker) { r.metrics = m }
}

func New(store Querier, opts ...Option) *Ranker {
	r := &Ranker{store: store, metrics: metrics.Nop{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search returns at most topK candidates with similarity >= threshold, best first.
// The returned slice is never nil. A store failure yields an empty slice and
// an error wrapping ErrStoreUnavailable.
func (r *Ranker) Search(ctx context.Context, embedding []float32, topK int, threshold float64) ([]models.RetrievedCandidate, error) {
	if err := validate(embedding, topK, threshold); err != nil {
		return []models.RetrievedCandidate{}, err
	}
	r.metrics.SearchRequested()

	results, err := r.store.Query(ctx, embedding, threshold, topK)
	if err != nil {
		r.metrics.SearchFailed()
		log.Error().Err(err).Int("top_k", topK).Float64("threshold", threshold).Msg("Error searching similar documents")
		return []models.RetrievedCandidate{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	candidates := rank(results, topK, threshold)
	if len(candidates) == 0 {
		r.metrics.SearchEmpty()
		log.Info().Int("top_k", topK).Float64("threshold", threshold).Msg("No similar documents found")
		return candidates, nil
	}

	log.Info().Int("found", len(candidates)).Msg("Found similar documents")
	return candidates, nil
}

func validate(embedding []float32, topK int, threshold float64) error {
	switch {
	case len(embedding) == 0:
		return fmt.Errorf("%w: empty query embedding", ErrInvalidParams)
	case topK < 1:
		return fmt.Errorf("%w: top_k must be at least 1, got %d", ErrInvalidParams, topK)
	case threshold < 0 || threshold > 1:
		return fmt.Errorf("%w: threshold must be within [0, 1], got %v", ErrInvalidParams, threshold)
	}
	return nil
}

// rank drops candidates below threshold, orders the rest by descending
// similarity keeping store order for ties, and caps the result at topK.
func rank(results []models.RetrievedCandidate, topK int, threshold float64) []models.RetrievedCandidate {
	candidates := make([]models.RetrievedCandidate, 0, min(len(results), topK))
	for _, c := range results {
		if c.Similarity >= threshold {
			candidates = append(candidates, c)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}
