// Package chunker normalizes document text and splits it into bounded,
// overlapping chunks that prefer sentence and line boundaries.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
)

const (
	DefaultChunkSize      = 500
	DefaultOverlap        = 50
	DefaultMinChunkLength = 10
	DefaultMaxIterations  = 1000
)

var ErrInvalidConfig = errors.New("invalid chunking config")

// boundaries are tried in order; the first one found after the window start wins.
var boundaries = [][]rune{
	[]rune(". "),
	[]rune("! "),
	[]rune("? "),
	[]rune("\n"),
}

// Config controls how text is split. All lengths are in characters.
type Config struct {
	ChunkSize      int `yaml:"chunk_size"`
	Overlap        int `yaml:"chunk_overlap"`
	MinChunkLength int `yaml:"min_chunk_length"`
	MaxIterations  int `yaml:"max_iterations"`
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:      DefaultChunkSize,
		Overlap:        DefaultOverlap,
		MinChunkLength: DefaultMinChunkLength,
		MaxIterations:  DefaultMaxIterations,
	}
}

func (c Config) Validate() error {
	switch {
	case c.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	case c.Overlap < 0:
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, c.Overlap)
	case c.Overlap >= c.ChunkSize:
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, c.Overlap, c.ChunkSize)
	case c.MinChunkLength < 0:
		return fmt.Errorf("%w: min chunk length must not be negative, got %d", ErrInvalidConfig, c.MinChunkLength)
	case c.MaxIterations <= 0:
		return fmt.Errorf("%w: max iterations must be positive, got %d", ErrInvalidConfig, c.MaxIterations)
	}
	return nil
}

// window is one accepted cut: text[start:end] trimmed.
type window struct {
	start, end int
	text       string
}

// Split splits text into chunks in document order.
func Split(text string, cfg Config) []string {
	windows := split(text, cfg)
	chunks := make([]string, 0, len(windows))
	for _, w := range windows {
		chunks = append(chunks, w.text)
	}
	return chunks
}

// Chunks splits text like Split and records offsets and sibling positions.
func Chunks(docID, text string, cfg Config) []models.Chunk {
	windows := split(text, cfg)
	chunks := make([]models.Chunk, 0, len(windows))
	for i, w := range windows {
		chunks = append(chunks, models.Chunk{
			Text:             w.text,
			StartOffset:      w.start,
			EndOffset:        w.end,
			SourceDocumentID: docID,
			ChunkIndex:       i,
			TotalChunks:      len(windows),
		})
	}
	return chunks
}

func split(text string, cfg Config) []window {
	if text == "" {
		return nil
	}
	if cfg.ChunkSize <= 0 {
		log.Warn().Int("chunk_size", cfg.ChunkSize).Msg("Refusing to chunk with non-positive chunk size")
		return nil
	}

	runes := []rune(text)
	n := len(runes)

	var windows []window
	start := 0
	iterations := 0
	for start < n {
		iterations++
		if iterations > cfg.MaxIterations {
			log.Warn().
				Int("max_iterations", cfg.MaxIterations).
				Int("chunks", len(windows)).
				Int("position", start).
				Int("length", n).
				Msg("Chunking stopped at iteration cap, result truncated")
			break
		}

		end := min(start+cfg.ChunkSize, n)
		if end < n {
			end = snapToBoundary(runes, start, end)
		}

		candidate := strings.TrimSpace(string(runes[start:end]))
		if candidate != "" && utf8.RuneCountInString(candidate) > cfg.MinChunkLength {
			windows = append(windows, window{start: start, end: end, text: candidate})
		}

		// the next start must stay strictly ahead of the current one
		if end < n && cfg.Overlap < end-start {
			start = end - cfg.Overlap
		} else {
			start = end
		}
		if start < 0 || start >= n {
			break
		}
	}

	log.Debug().Int("chunks", len(windows)).Int("iterations", iterations).Int("length", n).Msg("Created chunks")
	return windows
}

// snapToBoundary moves end back to just after the rightmost marker inside
// text[start:end], trying markers in preference order. The marker must begin
// after start. Without a match end is returned unchanged.
func snapToBoundary(text []rune, start, end int) int {
	for _, marker := range boundaries {
		if i := lastIndex(text, marker, start, end); i > start {
			return i + 1
		}
	}
	return end
}

// lastIndex returns the index of the rightmost occurrence of marker lying
// entirely inside text[lo:hi], or -1.
func lastIndex(text, marker []rune, lo, hi int) int {
	for i := hi - len(marker); i >= lo; i-- {
		match := true
		for j, r := range marker {
			if text[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
