package models

const (
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"

	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.5
	SourcePreviewLength        = 200
	UnknownSource              = "Unknown"

	ContextSeparator = "\n---\n"

	NoContextAnswer = "I don't have any relevant information to answer your question."
	NoResultsAnswer = "I couldn't find any relevant information to answer your question. Please try rephrasing or ask something else."
	ErrorAnswer     = "I encountered an error while processing your question: %s"

	IndexStatusRunning   = "running"
	IndexStatusCompleted = "completed"
	IndexStatusCancelled = "cancelled"
)

var (
	SystemPrompt = `You are a helpful assistant that answers questions based solely on the provided context.

IMPORTANT INSTRUCTIONS:
1. Only use information from the provided context to answer questions
2. If the answer cannot be found in the context, clearly state that you don't have enough information
3. Do not make up or infer information that is not explicitly stated in the context
4. Be concise and accurate in your responses
5. If relevant, cite which part of the context you're using

Always maintain a professional and helpful tone.`

	ContextSectionTemplate = "[Document %d] (Source: %s, Relevance: %.2f)\n%s\n"

	UserPromptTemplate = `Context Information:
%s

---

Question: %s

Please answer the question based only on the context information provided above.`
)
