package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	texts  []string
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := f.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	return f.vector, f.err
}

func TestEmbedChunk(t *testing.T) {
	chunk := models.Chunk{Text: "hello world", SourceDocumentID: "a.docx", ChunkIndex: 2, TotalChunks: 5}
	fake := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}}

	embedded, err := EmbedChunk(context.Background(), fake, chunk, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"hello world"}, fake.texts)
	assert.Equal(t, chunk, embedded.Chunk)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embedded.Embedding)
	assert.Equal(t, map[string]any{"chunk_index": 2, "total_chunks": 5}, embedded.Metadata)
}

func TestEmbedChunkErrors(t *testing.T) {
	chunk := models.Chunk{Text: "hello world", SourceDocumentID: "a.docx"}

	_, err := EmbedChunk(context.Background(), &fakeEmbedder{err: errors.New("rate limited")}, chunk, 0)
	assert.ErrorContains(t, err, "rate limited")

	_, err = EmbedChunk(context.Background(), &fakeEmbedder{}, chunk, 0)
	assert.ErrorContains(t, err, "empty embedding")
}

func TestEmbedChunkDimension(t *testing.T) {
	chunk := models.Chunk{Text: "hello world", SourceDocumentID: "a.docx", ChunkIndex: 1}
	fake := &fakeEmbedder{vector: make([]float32, 3072)}

	_, err := EmbedChunk(context.Background(), fake, chunk, 1536)
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.ErrorContains(t, err, "has 3072 values, store expects 1536")

	embedded, err := EmbedChunk(context.Background(), fake, chunk, 0)
	require.NoError(t, err)
	assert.Len(t, embedded.Embedding, 3072)
}

func TestEmbedFunc(t *testing.T) {
	fake := &fakeEmbedder{vector: []float32{1}}

	v, err := EmbedFunc(fake)(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, v)
}

func TestNewEmbedderUnsupportedProvider(t *testing.T) {
	_, err := NewEmbedder(&config.LLMConfig{Provider: "bard"})
	assert.ErrorContains(t, err, "unsupported embedding provider")
}

func TestNewOllamaEmbedder(t *testing.T) {
	e, err := NewEmbedder(&config.LLMConfig{Provider: config.ProviderOllama, BaseURL: "http://localhost:11434", Model: "nomic-embed-text"})
	require.NoError(t, err)
	assert.NotNil(t, e)
}
