package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"document-qa/internal/helper"
	"document-qa/internal/models"
)

// Job is an indexing run executing in the background.
type Job struct {
	ID string

	totalDocuments int
	done           chan struct{}

	mu       sync.Mutex
	stats    Stats
	finished bool
}

// Start runs the pipeline over docs on its own goroutine and returns
// immediately. Cancelling ctx stops the run before the next chunk.
func (p *Pipeline) Start(ctx context.Context, docs []models.Document) (*Job, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:             id,
		totalDocuments: len(docs),
		done:           make(chan struct{}),
	}

	go func() {
		defer close(job.done)
		stats := p.run(ctx, docs, job.update)

		job.mu.Lock()
		job.stats = stats
		job.finished = true
		job.mu.Unlock()
		log.Info().Str("job", job.ID).Msg("Indexing job finished")
	}()

	return job, nil
}

func (j *Job) update(s Stats) {
	j.mu.Lock()
	j.stats = s
	j.mu.Unlock()
}

// Done is closed when the job has finished.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Stats returns the totals so far, or the final totals once Done is closed.
func (j *Job) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}

func (j *Job) Status() models.IndexStatus {
	j.mu.Lock()
	defer j.mu.Unlock()

	status := models.IndexStatus{
		Status:         models.IndexStatusRunning,
		TotalDocuments: j.totalDocuments,
		TotalChunks:    j.stats.ChunksCreated,
		IndexedChunks:  j.stats.ChunksIndexed,
		FailedChunks:   j.stats.ChunksFailed,
		Message:        fmt.Sprintf("Indexed %d of %d documents", j.stats.Documents, j.totalDocuments),
	}
	switch {
	case j.finished && j.stats.Cancelled:
		status.Status = models.IndexStatusCancelled
		status.Message = fmt.Sprintf("Cancelled after %d of %d documents", j.stats.Documents, j.totalDocuments)
	case j.finished:
		status.Status = models.IndexStatusCompleted
		status.Message = fmt.Sprintf("Indexed %d chunks from %d documents (%.2f%% success)",
			j.stats.ChunksIndexed, j.stats.Documents, j.stats.SuccessRate()*100)
	}
	return status
}
