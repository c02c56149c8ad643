package models

import "time"

// Chunk is one bounded fragment of a document's text, ordered by Index.
type Chunk struct {
	Content  string
	Index    int
	Metadata map[string]string
}

// ChunkEmbedding pairs a chunk with its embedding vector and provenance.
type ChunkEmbedding struct {
	Content        string
	Embedding      []float32
	SequenceIndex  int
	SourceFilename string
	Metadata       map[string]string
}

// SourceCitation points at the chunk that grounded part of an answer.
// Derived at answer time, never stored on its own.
type SourceCitation struct {
	Filename   string  `json:"filename"`
	Similarity float64 `json:"similarity"`
	Excerpt    string  `json:"excerpt"`
}

// ConversationTurn is one question/answer exchange within a session.
type ConversationTurn struct {
	Question  string           `json:"question"`
	Answer    string           `json:"answer"`
	Sources   []SourceCitation `json:"sources"`
	CreatedAt time.Time        `json:"created_at"`
}

// QueryResponse is what the answer synthesizer returns to the transport layer.
type QueryResponse struct {
	Answer    string           `json:"answer"`
	Filenames []string         `json:"filenames"`
	Sources   []SourceCitation `json:"sources"`
	Cached    bool             `json:"cached,omitempty"`
}

// SearchResult is one retrieved chunk with its similarity to the query.
type SearchResult struct {
	Content       string
	Filename      string
	Category      string
	SequenceIndex int
	Similarity    float64
}

// DocumentRef identifies one ingestible document and the category derived
// from its storage grouping.
type DocumentRef struct {
	Identifier string
	Category   string
}

// IngestFailure records why one document was skipped or rolled back.
type IngestFailure struct {
	Identifier string
	Reason     string
}

// IngestSummary aggregates the outcome of one ingestion batch.
type IngestSummary struct {
	DocumentsProcessed int
	ChunksCreated      int
	Failures           []IngestFailure
}
