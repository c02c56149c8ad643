package db

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"

	"knowledgebase/internal/models"
)

// Document is one ingested file. At most one live row per filename;
// re-ingestion replaces the row and its chunks in a single transaction.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Filename  string    `bun:"filename,notnull"`
	SourceURL string    `bun:"source_url"`
	Category  string    `bun:"category"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:now()"`

	Chunks []*Chunk `bun:"rel:has-many,join:id=document_id"`
}

// Chunk belongs to exactly one Document; deletion cascades at the store
// layer. SequenceIndex is zero-based and contiguous per document.
type Chunk struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`

	ID            int64             `bun:"id,pk,autoincrement"`
	DocumentID    int64             `bun:"document_id,notnull"`
	SequenceIndex int               `bun:"sequence_index,notnull"`
	Content       string            `bun:"content,notnull"`
	Embedding     pgvector.Vector   `bun:"embedding,type:vector"`
	Metadata      map[string]string `bun:"metadata,type:jsonb"`
	CreatedAt     time.Time         `bun:"created_at,nullzero,default:now()"`
}

// UserSession associates an archived session with its owner. Written once,
// when the session ends.
type UserSession struct {
	bun.BaseModel `bun:"table:user_sessions,alias:us"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    string    `bun:"user_id,notnull"`
	SessionID string    `bun:"session_id,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:now()"`
}

// Conversation is one archived turn. Append-only.
type Conversation struct {
	bun.BaseModel `bun:"table:conversations,alias:cv"`

	ID        int64                   `bun:"id,pk,autoincrement"`
	SessionID string                  `bun:"session_id,notnull"`
	Question  string                  `bun:"question,notnull"`
	Answer    string                  `bun:"answer,notnull"`
	Sources   []models.SourceCitation `bun:"sources,type:jsonb"`
	CreatedAt time.Time               `bun:"created_at,nullzero,default:now()"`
}

// SemanticCacheEntry stores a previously produced answer keyed by the
// question's embedding.
type SemanticCacheEntry struct {
	bun.BaseModel `bun:"table:semantic_cache,alias:sc"`

	ID                int64           `bun:"id,pk,autoincrement"`
	QuestionEmbedding pgvector.Vector `bun:"question_embedding,type:vector"`
	Answer            string          `bun:"answer,notnull"`
	CreatedAt         time.Time       `bun:"created_at,nullzero,default:now()"`
}
