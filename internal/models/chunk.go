package models

// Document is a raw source document before normalization.
// ID is the source file path.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk represents a bounded window of a normalized document
type Chunk struct {
	Text             string
	StartOffset      int // inclusive, in characters
	EndOffset        int // exclusive, in characters
	SourceDocumentID string
	ChunkIndex       int
	TotalChunks      int
}

// EmbeddedChunk is a chunk ready to be written to a vector store
type EmbeddedChunk struct {
	Chunk
	Embedding []float32
	Metadata  map[string]any
}

// NewEmbeddedChunk attaches the embedding and the sibling metadata to a chunk.
func NewEmbeddedChunk(c Chunk, embedding []float32) EmbeddedChunk {
	return EmbeddedChunk{
		Chunk:     c,
		Embedding: embedding,
		Metadata: map[string]any{
			MetaChunkIndex:  c.ChunkIndex,
			MetaTotalChunks: c.TotalChunks,
		},
	}
}

// RetrievedCandidate is a single similarity search hit
type RetrievedCandidate struct {
	Content    string  `json:"content"`
	SourceFile string  `json:"source_file"`
	Similarity float64 `json:"similarity"`
}
