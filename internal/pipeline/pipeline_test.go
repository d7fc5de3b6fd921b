package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-qa/internal/chunker"
	"document-qa/internal/metrics"
	"document-qa/internal/models"
)

type fakeEmbedder struct {
	// failOn makes EmbedQuery fail for texts containing this substring.
	failOn string
	// panicOn makes EmbedQuery panic for texts containing this substring.
	panicOn string
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
	if f.panicOn != "" && strings.Contains(text, f.panicOn) {
		panic("embedding backend crashed")
	}
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("embedding backend unavailable")
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

type insert struct {
	chunk      models.EmbeddedChunk
	sourceFile string
}

type fakeStore struct {
	mu       sync.Mutex
	inserts  []insert
	failOn   string
	onInsert func()
}

func (f *fakeStore) Insert(_ context.Context, chunk models.EmbeddedChunk, sourceFile string) error {
	if f.onInsert != nil {
		f.onInsert()
	}
	if f.failOn != "" && strings.Contains(chunk.Text, f.failOn) {
		return errors.New("insert rejected")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts = append(f.inserts, insert{chunk: chunk, sourceFile: sourceFile})
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserts)
}

var cfg = chunker.Config{ChunkSize: 40, Overlap: 5, MinChunkLength: 5, MaxIterations: 1000}

func doc(id, content string) models.Document {
	return models.Document{ID: id, Path: "docs/" + id, Content: content}
}

const threeSentences = "Alpha sentence is here. Bravo sentence is here. Charlie sentence is here."

func TestIndexDocument(t *testing.T) {
	store := &fakeStore{}
	p := New(&fakeEmbedder{}, store, cfg)

	stats := p.IndexDocument(context.Background(), doc("a.docx", threeSentences))

	want := chunker.Chunks("a.docx", chunker.Normalize(threeSentences), cfg)
	require.NotEmpty(t, want)
	assert.Equal(t, Stats{Documents: 1, ChunksCreated: len(want), ChunksIndexed: len(want)}, stats)
	require.Len(t, store.inserts, len(want))
	for i, in := range store.inserts {
		assert.Equal(t, "docs/a.docx", in.sourceFile)
		assert.Equal(t, want[i].Text, in.chunk.Text)
		assert.Equal(t, map[string]any{
			models.MetaChunkIndex:  i,
			models.MetaTotalChunks: len(want),
		}, in.chunk.Metadata)
		assert.NotEmpty(t, in.chunk.Embedding)
	}
}

func TestIndexDocumentRejectsWrongDimension(t *testing.T) {
	want := len(chunker.Chunks("a.docx", chunker.Normalize(threeSentences), cfg))

	store := &fakeStore{}
	stats := New(&fakeEmbedder{}, store, cfg, WithDimension(1536)).IndexDocument(context.Background(), doc("a.docx", threeSentences))
	assert.Equal(t, Stats{Documents: 1, ChunksCreated: want, ChunksFailed: want}, stats)
	assert.Empty(t, store.inserts)

	store = &fakeStore{}
	stats = New(&fakeEmbedder{}, store, cfg, WithDimension(3)).IndexDocument(context.Background(), doc("a.docx", threeSentences))
	assert.Equal(t, Stats{Documents: 1, ChunksCreated: want, ChunksIndexed: want}, stats)
	assert.Len(t, store.inserts, want)
}

func TestIndexDocumentNormalizesFirst(t *testing.T) {
	store := &fakeStore{}
	p := New(&fakeEmbedder{}, store, chunker.DefaultConfig())

	p.IndexDocument(context.Background(), doc("a.docx", "  Hello   *world*,\n\n\n\nthis is #text.  "))

	require.Len(t, store.inserts, 1)
	assert.Equal(t, "Hello world,\n\nthis is text.", store.inserts[0].chunk.Text)
}

func TestIndexDocumentChunkFailureContinues(t *testing.T) {
	tests := []struct {
		name     string
		embedder *fakeEmbedder
		store    *fakeStore
	}{
		{name: "embedding error", embedder: &fakeEmbedder{failOn: "Bravo"}, store: &fakeStore{}},
		{name: "embedding panic", embedder: &fakeEmbedder{panicOn: "Bravo"}, store: &fakeStore{}},
		{name: "insert error", embedder: &fakeEmbedder{}, store: &fakeStore{failOn: "Bravo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.embedder, tt.store, cfg)

			stats := p.IndexDocument(context.Background(), doc("a.docx", threeSentences))

			assert.Equal(t, 1, stats.ChunksFailed)
			assert.Equal(t, stats.ChunksCreated-1, stats.ChunksIndexed)
			assert.Equal(t, stats.ChunksIndexed, tt.store.count())
			for _, in := range tt.store.inserts {
				assert.NotContains(t, in.chunk.Text, "Bravo")
			}
			assert.Contains(t, tt.store.inserts[len(tt.store.inserts)-1].chunk.Text, "Charlie")
		})
	}
}

func TestRun(t *testing.T) {
	store := &fakeStore{}
	var progressed []string
	p := New(&fakeEmbedder{failOn: "Bravo"}, store, cfg, WithProgress(func(d models.Document, total Stats) {
		progressed = append(progressed, d.ID)
		assert.Equal(t, len(progressed), total.Documents)
	}))

	stats := p.Run(context.Background(), []models.Document{
		doc("a.docx", threeSentences),
		doc("empty.docx", ""),
		doc("b.docx", "A short but valid document."),
	})

	assert.Equal(t, 3, stats.Documents)
	assert.Equal(t, 1, stats.ChunksFailed)
	assert.Equal(t, stats.ChunksCreated-1, stats.ChunksIndexed)
	assert.False(t, stats.Cancelled)
	assert.Equal(t, []string{"a.docx", "empty.docx", "b.docx"}, progressed)
	assert.Equal(t, "docs/b.docx", store.inserts[len(store.inserts)-1].sourceFile)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := &fakeStore{}
	store.onInsert = cancel
	p := New(&fakeEmbedder{}, store, cfg)

	stats := p.Run(ctx, []models.Document{doc("a.docx", threeSentences), doc("b.docx", threeSentences)})

	assert.True(t, stats.Cancelled)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 1, stats.ChunksIndexed)
	assert.Equal(t, 1, store.count())
}

func TestRunRecordsMetrics(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	p := New(&fakeEmbedder{failOn: "Bravo"}, &fakeStore{}, cfg, WithMetrics(m))

	stats := p.Run(context.Background(), []models.Document{doc("a.docx", threeSentences)})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsProcessed))
	assert.Equal(t, float64(stats.ChunksCreated), testutil.ToFloat64(m.ChunksCreatedTotal))
	assert.Equal(t, float64(stats.ChunksIndexed), testutil.ToFloat64(m.ChunksIndexed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChunksFailed))
}

func TestStatsSuccessRate(t *testing.T) {
	assert.Zero(t, Stats{}.SuccessRate())
	assert.Zero(t, Stats{Documents: 2}.SuccessRate())
	assert.InDelta(t, 0.75, Stats{ChunksCreated: 4, ChunksIndexed: 3, ChunksFailed: 1}.SuccessRate(), 1e-9)
}

func TestStartRunsInBackground(t *testing.T) {
	release := make(chan struct{})
	store := &fakeStore{onInsert: func() { <-release }}
	p := New(&fakeEmbedder{}, store, cfg)

	job, err := p.Start(context.Background(), []models.Document{doc("a.docx", threeSentences)})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.IndexStatusRunning, job.Status().Status)
	assert.Equal(t, 1, job.Status().TotalDocuments)

	close(release)
	select {
	case <-job.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("indexing job did not finish")
	}

	status := job.Status()
	assert.Equal(t, models.IndexStatusCompleted, status.Status)
	assert.Equal(t, job.Stats().ChunksCreated, status.TotalChunks)
	assert.Equal(t, status.TotalChunks, status.IndexedChunks)
	assert.Zero(t, status.FailedChunks)
	assert.Equal(t, status.IndexedChunks, store.count())
}

func TestStartCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(&fakeEmbedder{}, &fakeStore{}, cfg)

	job, err := p.Start(ctx, []models.Document{doc("a.docx", threeSentences)})
	require.NoError(t, err)
	<-job.Done()

	assert.Equal(t, models.IndexStatusCancelled, job.Status().Status)
	assert.True(t, job.Stats().Cancelled)
	assert.Zero(t, job.Stats().Documents)
}
