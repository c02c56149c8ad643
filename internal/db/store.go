package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"

	"knowledgebase/internal/models"
)

// Store exposes the durable document, archive and semantic cache operations
// on top of one bun connection.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// ReplaceDocument atomically supersedes any prior version of the document:
// the old row (and its chunks, via cascade) is deleted and the new chunk set
// inserted inside one transaction, so a concurrent reader sees either the
// fully-old or the fully-new chunks.
func (s *Store) ReplaceDocument(ctx context.Context, ref models.DocumentRef, chunks []models.ChunkEmbedding) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*Document)(nil)).
			Where("filename = ?", ref.Identifier).
			Exec(ctx); err != nil {
			return fmt.Errorf("deleting previous document: %w", err)
		}

		doc := &Document{
			Filename:  ref.Identifier,
			SourceURL: ref.Identifier,
			Category:  ref.Category,
		}
		if _, err := tx.NewInsert().Model(doc).Exec(ctx); err != nil {
			return fmt.Errorf("inserting document: %w", err)
		}

		if len(chunks) == 0 {
			return nil
		}
		rows := make([]*Chunk, len(chunks))
		for i, ce := range chunks {
			rows[i] = &Chunk{
				DocumentID:    doc.ID,
				SequenceIndex: ce.SequenceIndex,
				Content:       ce.Content,
				Embedding:     pgvector.NewVector(ce.Embedding),
				Metadata:      ce.Metadata,
			}
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("inserting chunks: %w", err)
		}
		return nil
	})
}

type searchRow struct {
	Content       string  `bun:"content"`
	Filename      string  `bun:"filename"`
	Category      string  `bun:"category"`
	SequenceIndex int     `bun:"sequence_index"`
	Similarity    float64 `bun:"similarity"`
}

// Search returns up to k chunks with cosine similarity >= minSimilarity,
// ordered by similarity descending with filename then sequence index as
// deterministic tie-breakers. The query orders by the raw distance operator
// with a plain LIMIT, the only shape the HNSW index can serve; the threshold
// and tie-break ordering are applied on the fetched k rows afterwards.
func (s *Store) Search(ctx context.Context, embedding []float32, k int, minSimilarity float64) ([]models.SearchResult, error) {
	vec := pgvector.NewVector(embedding)
	var rows []searchRow
	err := s.db.NewSelect().
		TableExpr("chunks AS c").
		Join("JOIN documents AS d ON d.id = c.document_id").
		ColumnExpr("c.content, c.sequence_index, d.filename, d.category").
		ColumnExpr("1 - (c.embedding <=> ?) AS similarity", vec).
		OrderExpr("c.embedding <=> ?", vec).
		Limit(k).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return collectResults(rows, minSimilarity), nil
}

// collectResults filters nearest-k rows by the similarity threshold and
// orders them similarity descending, then filename, then sequence index.
func collectResults(rows []searchRow, minSimilarity float64) []models.SearchResult {
	results := make([]models.SearchResult, 0, len(rows))
	for _, row := range rows {
		if row.Similarity < minSimilarity {
			continue
		}
		results = append(results, models.SearchResult{
			Content:       row.Content,
			Filename:      row.Filename,
			Category:      row.Category,
			SequenceIndex: row.SequenceIndex,
			Similarity:    row.Similarity,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].Filename != results[j].Filename {
			return results[i].Filename < results[j].Filename
		}
		return results[i].SequenceIndex < results[j].SequenceIndex
	})
	return results
}

// ArchiveSession writes the session's turns as one durable record set. The
// archive is append-only; nothing here is ever updated afterwards.
func (s *Store) ArchiveSession(ctx context.Context, userID, sessionID string, turns []models.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		us := &UserSession{UserID: userID, SessionID: sessionID}
		if _, err := tx.NewInsert().
			Model(us).
			On("CONFLICT (session_id) DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("archiving session owner: %w", err)
		}

		rows := make([]*Conversation, len(turns))
		for i, turn := range turns {
			rows[i] = &Conversation{
				SessionID: sessionID,
				Question:  turn.Question,
				Answer:    turn.Answer,
				Sources:   turn.Sources,
			}
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("archiving turns: %w", err)
		}
		return nil
	})
}

// SessionTurns reads archived turns for a session, oldest first.
func (s *Store) SessionTurns(ctx context.Context, sessionID string) ([]models.ConversationTurn, error) {
	var rows []Conversation
	err := s.db.NewSelect().
		Model(&rows).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	turns := make([]models.ConversationTurn, len(rows))
	for i, row := range rows {
		turns[i] = models.ConversationTurn{
			Question:  row.Question,
			Answer:    row.Answer,
			Sources:   row.Sources,
			CreatedAt: row.CreatedAt,
		}
	}
	return turns, nil
}

// LookupCachedAnswer returns the best cached answer whose question embedding
// has cosine similarity >= threshold, or ok=false on a miss.
func (s *Store) LookupCachedAnswer(ctx context.Context, embedding []float32, threshold float64) (string, float64, bool, error) {
	vec := pgvector.NewVector(embedding)
	var row struct {
		Answer     string  `bun:"answer"`
		Similarity float64 `bun:"similarity"`
	}
	err := s.db.NewSelect().
		TableExpr("semantic_cache AS sc").
		ColumnExpr("sc.answer").
		ColumnExpr("1 - (sc.question_embedding <=> ?) AS similarity", vec).
		Where("1 - (sc.question_embedding <=> ?) >= ?", vec, threshold).
		OrderExpr("sc.question_embedding <=> ?", vec).
		Limit(1).
		Scan(ctx, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, err
	}
	return row.Answer, row.Similarity, true, nil
}

// StoreCachedAnswer records an answer for future semantically-equal
// questions. Best effort; callers log and move on when it fails.
func (s *Store) StoreCachedAnswer(ctx context.Context, embedding []float32, answer string) error {
	entry := &SemanticCacheEntry{
		QuestionEmbedding: pgvector.NewVector(embedding),
		Answer:            answer,
	}
	_, err := s.db.NewInsert().Model(entry).Exec(ctx)
	return err
}
