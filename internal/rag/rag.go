// Package rag answers questions over the indexed documents: it embeds the
// query, ranks stored chunks against it and synthesizes a grounded answer.
package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"document-qa/internal/helper"
	"document-qa/internal/models"
)

var ErrInvalidRequest = errors.New("invalid chat request")

type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int, threshold float64) ([]models.RetrievedCandidate, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, query string, candidates []models.RetrievedCandidate) string
	Stream(ctx context.Context, query string, candidates []models.RetrievedCandidate) <-chan string
}

type Service struct {
	embedder    embeddings.Embedder
	searcher    Searcher
	synthesizer Synthesizer
	validate    *validator.Validate
}

func NewService(embedder embeddings.Embedder, searcher Searcher, synthesizer Synthesizer) *Service {
	return &Service{
		embedder:    embedder,
		searcher:    searcher,
		synthesizer: synthesizer,
		validate:    validator.New(),
	}
}

// Ask answers req. Only a malformed request is returned as an error; backend
// failures degrade to a fallback answer with no sources.
func (s *Service) Ask(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return models.ChatResponse{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	candidates, ok := s.retrieve(ctx, req)
	if !ok {
		return noResults(req.Query), nil
	}

	answer := s.synthesizer.Synthesize(ctx, req.Query, candidates)

	sources := make([]models.Source, 0, len(candidates))
	for _, c := range candidates {
		sources = append(sources, models.NewSource(c))
	}
	return models.ChatResponse{
		Query:      req.Query,
		Answer:     answer,
		Sources:    sources,
		NumSources: len(sources),
	}, nil
}

// AskStream is the streaming form of Ask. When nothing relevant is found the
// channel carries the fallback answer as a single fragment.
func (s *Service) AskStream(ctx context.Context, req models.ChatRequest) (<-chan string, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	candidates, ok := s.retrieve(ctx, req)
	if !ok {
		out := make(chan string, 1)
		out <- models.NoResultsAnswer
		close(out)
		return out, nil
	}

	return s.synthesizer.Stream(ctx, req.Query, candidates), nil
}

// retrieve reports false when there is no usable context, whether the
// backend failed or simply found nothing.
func (s *Service) retrieve(ctx context.Context, req models.ChatRequest) ([]models.RetrievedCandidate, bool) {
	log.Info().Str("query", helper.Truncate(req.Query, 100)).Int("top_k", req.TopK).Float64("threshold", req.SimilarityThreshold).Msg("Processing chat request")

	queryEmbedding, err := s.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		log.Error().Err(err).Msg("Error generating query embedding")
		return nil, false
	}

	candidates, err := s.searcher.Search(ctx, queryEmbedding, req.TopK, req.SimilarityThreshold)
	if err != nil {
		log.Error().Err(err).Msg("Error retrieving documents")
		return nil, false
	}
	if len(candidates) == 0 {
		log.Info().Str("query", helper.Truncate(req.Query, 100)).Msg("No relevant documents found")
		return nil, false
	}

	return candidates, true
}

func noResults(query string) models.ChatResponse {
	return models.ChatResponse{
		Query:      query,
		Answer:     models.NoResultsAnswer,
		Sources:    []models.Source{},
		NumSources: 0,
	}
}
