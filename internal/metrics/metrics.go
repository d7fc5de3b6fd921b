// Package metrics provides Prometheus metrics for indexing and retrieval
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives pipeline and retrieval events
type Recorder interface {
	DocumentProcessed()
	ChunksCreated(n int)
	ChunkIndexed()
	ChunkFailed()
	SearchRequested()
	SearchFailed()
	SearchEmpty()
}

// Metrics holds the Prometheus counters
type Metrics struct {
	DocumentsProcessed prometheus.Counter
	ChunksCreatedTotal prometheus.Counter
	ChunksIndexed      prometheus.Counter
	ChunksFailed       prometheus.Counter
	SearchRequests     prometheus.Counter
	SearchErrors       prometheus.Counter
	SearchEmptyResults prometheus.Counter
}

// NewMetrics creates the counters and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DocumentsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "rag_documents_processed_total",
			Help: "Total number of documents processed",
		}),
		ChunksCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rag_chunks_created_total",
			Help: "Total number of chunks created",
		}),
		ChunksIndexed: factory.NewCounter(prometheus.CounterOpts{
			Name: "rag_chunks_indexed_total",
			Help: "Total number of chunks embedded and stored",
		}),
		ChunksFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "rag_chunks_failed_total",
			Help: "Total number of chunks that failed to embed or store",
		}),
		SearchRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "rag_search_requests_total",
			Help: "Total number of similarity searches",
		}),
		SearchErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "rag_search_errors_total",
			Help: "Total number of similarity searches that failed in the store",
		}),
		SearchEmptyResults: factory.NewCounter(prometheus.CounterOpts{
			Name: "rag_search_empty_total",
			Help: "Total number of similarity searches without matches",
		}),
	}
}

func (m *Metrics) DocumentProcessed() { m.DocumentsProcessed.Inc() }

func (m *Metrics) ChunksCreated(n int) { m.ChunksCreatedTotal.Add(float64(n)) }

func (m *Metrics) ChunkIndexed() { m.ChunksIndexed.Inc() }

func (m *Metrics) ChunkFailed() { m.ChunksFailed.Inc() }

func (m *Metrics) SearchRequested() { m.SearchRequests.Inc() }

func (m *Metrics) SearchFailed() { m.SearchErrors.Inc() }

func (m *Metrics) SearchEmpty() { m.SearchEmptyResults.Inc() }

// Nop discards every event
type Nop struct{}

func (Nop) DocumentProcessed() {}
func (Nop) ChunksCreated(int)  {}
func (Nop) ChunkIndexed()      {}
func (Nop) ChunkFailed()       {}
func (Nop) SearchRequested()   {}
func (Nop) SearchFailed()      {}
func (Nop) SearchEmpty()       {}
