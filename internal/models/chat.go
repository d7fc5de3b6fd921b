package models

import "unicode/utf8"

// ChatRequest is a question together with its retrieval parameters
type ChatRequest struct {
	Query               string  `json:"query" validate:"required"`
	TopK                int     `json:"top_k" validate:"gte=1,lte=20"`
	SimilarityThreshold float64 `json:"similarity_threshold" validate:"gte=0,lte=1"`
}

// NewChatRequest returns a request with the default retrieval parameters.
func NewChatRequest(query string) ChatRequest {
	return ChatRequest{
		Query:               query,
		TopK:                DefaultTopK,
		SimilarityThreshold: DefaultSimilarityThreshold,
	}
}

type Source struct {
	Content    string  `json:"content"`
	SourceFile string  `json:"source_file"`
	Similarity float64 `json:"similarity"`
}

type ChatResponse struct {
	Query      string   `json:"query"`
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	NumSources int      `json:"num_sources"`
}

// IndexStatus summarises an indexing run
type IndexStatus struct {
	Status         string `json:"status"`
	TotalDocuments int    `json:"total_documents"`
	TotalChunks    int    `json:"total_chunks"`
	IndexedChunks  int    `json:"indexed_chunks"`
	FailedChunks   int    `json:"failed_chunks"`
	Message        string `json:"message"`
}

// NewSource builds a source entry, shortening long content to a preview.
func NewSource(c RetrievedCandidate) Source {
	content := c.Content
	if utf8.RuneCountInString(content) > SourcePreviewLength {
		content = string([]rune(content)[:SourcePreviewLength]) + "..."
	}
	sourceFile := c.SourceFile
	if sourceFile == "" {
		sourceFile = UnknownSource
	}
	return Source{
		Content:    content,
		SourceFile: sourceFile,
		Similarity: c.Similarity,
	}
}
