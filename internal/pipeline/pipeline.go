// Package pipeline indexes documents: normalize, chunk, embed and store.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"document-qa/internal/chunker"
	"document-qa/internal/embedding"
	"document-qa/internal/metrics"
	"document-qa/internal/models"
)

// Inserter writes one embedded chunk to a vector store.
type Inserter interface {
	Insert(ctx context.Context, chunk models.EmbeddedChunk, sourceFile string) error
}

// Stats counts the outcome of an indexing run
type Stats struct {
	Documents     int  `json:"documents"`
	ChunksCreated int  `json:"chunks_created"`
	ChunksIndexed int  `json:"chunks_indexed"`
	ChunksFailed  int  `json:"chunks_failed"`
	Cancelled     bool `json:"cancelled"`
}

// SuccessRate is the fraction of created chunks that were stored, 0 when none were created.
func (s Stats) SuccessRate() float64 {
	if s.ChunksCreated == 0 {
		return 0
	}
	return float64(s.ChunksIndexed) / float64(s.ChunksCreated)
}

func (s *Stats) add(o Stats) {
	s.Documents += o.Documents
	s.ChunksCreated += o.ChunksCreated
	s.ChunksIndexed += o.ChunksIndexed
	s.ChunksFailed += o.ChunksFailed
	s.Cancelled = s.Cancelled || o.Cancelled
}

// ProgressFunc is called after each document with the totals so far.
type ProgressFunc func(doc models.Document, total Stats)

type Pipeline struct {
	embedder embeddings.Embedder
	store    Inserter
	cfg      chunker.Config
	progress ProgressFunc
	metrics  metrics.Recorder
	dim      int
}

type Option func(*Pipeline)

func WithProgress(fn ProgressFunc) Option {
	return func(p *Pipeline) { p.progress = fn }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithDimension makes every chunk whose vector length differs from n fail.
func WithDimension(n int) Option {
	return func(p *Pipeline) { p.dim = n }
}

func New(embedder embeddings.Embedder, store Inserter, cfg chunker.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		metrics:  metrics.Nop{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IndexDocument chunks one document and stores every chunk it can. A failing
// chunk is counted and skipped.
func (p *Pipeline) IndexDocument(ctx context.Context, doc models.Document) Stats {
	stats := Stats{Documents: 1}
	p.metrics.DocumentProcessed()

	chunks := chunker.Chunks(doc.ID, chunker.Normalize(doc.Content), p.cfg)
	stats.ChunksCreated = len(chunks)
	p.metrics.ChunksCreated(len(chunks))
	log.Info().Str("document", doc.ID).Int("chunks", len(chunks)).Msg("Created chunks from document")

	for _, c := range chunks {
		if ctx.Err() != nil {
			stats.Cancelled = true
			log.Warn().Str("document", doc.ID).Int("chunk_index", c.ChunkIndex).Msg("Indexing cancelled")
			return stats
		}

		if err := p.indexChunk(ctx, doc, c); err != nil {
			stats.ChunksFailed++
			p.metrics.ChunkFailed()
			log.Error().Err(err).Str("document", doc.ID).Int("chunk_index", c.ChunkIndex).Msg("Error indexing chunk")
			continue
		}
		stats.ChunksIndexed++
		p.metrics.ChunkIndexed()
	}

	return stats
}

func (p *Pipeline) indexChunk(ctx context.Context, doc models.Document, c models.Chunk) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while indexing chunk: %v", r)
		}
	}()

	embedded, err := embedding.EmbedChunk(ctx, p.embedder, c, p.dim)
	if err != nil {
		return err
	}
	if err := p.store.Insert(ctx, embedded, doc.Path); err != nil {
		return fmt.Errorf("failed to store chunk %d of %s: %w", c.ChunkIndex, doc.ID, err)
	}
	return nil
}

// Run indexes docs in order and logs a summary.
func (p *Pipeline) Run(ctx context.Context, docs []models.Document) Stats {
	return p.run(ctx, docs, nil)
}

func (p *Pipeline) run(ctx context.Context, docs []models.Document, onDocument func(Stats)) Stats {
	log.Info().Int("documents", len(docs)).Msg("Starting document indexing")

	var total Stats
	for i, doc := range docs {
		if ctx.Err() != nil {
			total.Cancelled = true
			break
		}
		log.Info().Int("n", i+1).Str("document", doc.ID).Msg("Processing document")

		total.add(p.IndexDocument(ctx, doc))
		if onDocument != nil {
			onDocument(total)
		}
		if p.progress != nil {
			p.progress(doc, total)
		}
	}

	logSummary(total)
	return total
}

func logSummary(s Stats) {
	log.Info().Msg("============================================================")
	if s.Cancelled {
		log.Warn().Msg("INDEXING CANCELLED")
	} else {
		log.Info().Msg("INDEXING COMPLETE")
	}
	log.Info().
		Int("documents", s.Documents).
		Int("chunks_created", s.ChunksCreated).
		Int("chunks_indexed", s.ChunksIndexed).
		Int("chunks_failed", s.ChunksFailed).
		Str("success_rate", fmt.Sprintf("%.2f%%", s.SuccessRate()*100)).
		Msg("Indexing summary")
	log.Info().Msg("============================================================")
}
