package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

// ErrDimensionMismatch is returned when a vector does not have the size the store expects.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// NewEmbedder creates an embedder for the configured provider
func NewEmbedder(llmConfig *config.LLMConfig) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        llmConfig.Provider,
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Creating embedder")

	switch llmConfig.Provider {
	case config.ProviderOllama:
		return NewOllamaEmbedder(llmConfig)
	case config.ProviderOpenAI:
		return NewOpenAIEmbedder(llmConfig)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", llmConfig.Provider)
	}
}

// new openai compatible embedder
func NewOpenAIEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithEmbeddingModel(llmConfig.Model),
	}
	if llmConfig.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// new ollama embedder
func NewOllamaEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
	if llmConfig.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// EmbedChunk embeds a single chunk and attaches its sibling metadata. A
// positive dimension rejects vectors of any other length.
func EmbedChunk(ctx context.Context, embedder embeddings.Embedder, chunk models.Chunk, dimension int) (models.EmbeddedChunk, error) {
	vector, err := embedder.EmbedQuery(ctx, chunk.Text)
	if err != nil {
		return models.EmbeddedChunk{}, fmt.Errorf("failed to embed chunk %d of %s: %w", chunk.ChunkIndex, chunk.SourceDocumentID, err)
	}
	if len(vector) == 0 {
		return models.EmbeddedChunk{}, fmt.Errorf("empty embedding for chunk %d of %s", chunk.ChunkIndex, chunk.SourceDocumentID)
	}
	if dimension > 0 && len(vector) != dimension {
		return models.EmbeddedChunk{}, fmt.Errorf("%w: chunk %d of %s has %d values, store expects %d",
			ErrDimensionMismatch, chunk.ChunkIndex, chunk.SourceDocumentID, len(vector), dimension)
	}
	return models.NewEmbeddedChunk(chunk, vector), nil
}

// EmbedFunc adapts an embedder to the single text function used by chromem.
func EmbedFunc(embedder embeddings.Embedder) func(ctx context.Context, text string) ([]float32, error) {
	return func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
}
