package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"knowledgebase/internal/config"
)

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.URL + "?sslmode=disable"
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(cfg.Password))), nil
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// InitDB creates the schema. The embedding dimensionality is fixed here, at
// table-creation time; re-ingestion with a different embedder requires a new
// schema. Raw DDL because bun cannot express the vector type or HNSW indexes.
func InitDB(ctx context.Context, db *bun.DB, vectorSize int) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
			id SERIAL PRIMARY KEY,
			filename VARCHAR(500) NOT NULL UNIQUE,
			source_url TEXT,
			category VARCHAR(50),
			created_at TIMESTAMP DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id SERIAL PRIMARY KEY,
			document_id INTEGER REFERENCES documents(id) ON DELETE CASCADE,
			sequence_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d),
			metadata JSONB DEFAULT '{}',
			created_at TIMESTAMP DEFAULT NOW()
		)`, vectorSize),
		`CREATE INDEX IF NOT EXISTS chunks_embedding_idx
			ON chunks USING hnsw (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS chunks_document_id_idx ON chunks (document_id)`,
		`CREATE TABLE IF NOT EXISTS user_sessions (
			id SERIAL PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			session_id VARCHAR(36) NOT NULL UNIQUE,
			created_at TIMESTAMP DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS user_sessions_user_id_idx ON user_sessions (user_id)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id SERIAL PRIMARY KEY,
			session_id VARCHAR(36) NOT NULL REFERENCES user_sessions(session_id),
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			sources JSONB DEFAULT '[]',
			created_at TIMESTAMP DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS conversations_session_id_idx ON conversations (session_id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS semantic_cache (
			id SERIAL PRIMARY KEY,
			question_embedding vector(%d) NOT NULL,
			answer TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT NOW()
		)`, vectorSize),
		`CREATE INDEX IF NOT EXISTS semantic_cache_embedding_idx
			ON semantic_cache USING hnsw (question_embedding vector_cosine_ops)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// DropSchema removes all knowledge base tables. Reached only via the -reset
// startup flag, never by request paths.
func DropSchema(ctx context.Context, db *bun.DB) error {
	statements := []string{
		`DROP TABLE IF EXISTS semantic_cache CASCADE`,
		`DROP TABLE IF EXISTS conversations CASCADE`,
		`DROP TABLE IF EXISTS user_sessions CASCADE`,
		`DROP TABLE IF EXISTS chunks CASCADE`,
		`DROP TABLE IF EXISTS documents CASCADE`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
