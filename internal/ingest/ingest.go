// Package ingest orchestrates the fetch → chunk → embed → persist pipeline.
// Failures are isolated per document: a fetch or provider fault skips that
// document and the batch carries on.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"knowledgebase/internal/chunker"
	"knowledgebase/internal/embedding"
	"knowledgebase/internal/models"
)

// Source lists ingestible documents and fetches their text.
type Source interface {
	List() ([]models.DocumentRef, error)
	Fetch(identifier string) (string, error)
}

// Store atomically replaces a document's stored chunk set.
type Store interface {
	ReplaceDocument(ctx context.Context, ref models.DocumentRef, chunks []models.ChunkEmbedding) error
}

type Pipeline struct {
	source       Source
	chunker      *chunker.Chunker
	embedder     embeddings.Embedder
	store        Store
	embedTimeout time.Duration
}

func NewPipeline(source Source, ch *chunker.Chunker, embedder embeddings.Embedder, store Store, embedTimeout time.Duration) *Pipeline {
	return &Pipeline{
		source:       source,
		chunker:      ch,
		embedder:     embedder,
		store:        store,
		embedTimeout: embedTimeout,
	}
}

// Run ingests every listed document. Re-running on unchanged content yields
// the same stored state: each document's chunks are fully superseded, never
// duplicated.
func (p *Pipeline) Run(ctx context.Context) (*models.IngestSummary, error) {
	refs, err := p.source.List()
	if err != nil {
		return nil, err
	}

	summary := &models.IngestSummary{}
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		chunksStored, err := p.ingestOne(ctx, ref)
		if err != nil {
			var fetchErr *models.FetchError
			if errors.As(err, &fetchErr) {
				log.Warn().Err(err).Str("document", ref.Identifier).Msg("Skipping unreachable document")
			} else {
				log.Error().Err(err).Str("document", ref.Identifier).Msg("Ingestion failed for document")
			}
			summary.Failures = append(summary.Failures, models.IngestFailure{
				Identifier: ref.Identifier,
				Reason:     err.Error(),
			})
			continue
		}
		summary.DocumentsProcessed++
		summary.ChunksCreated += chunksStored
	}

	log.Info().
		Int("documents", summary.DocumentsProcessed).
		Int("chunks", summary.ChunksCreated).
		Int("failures", len(summary.Failures)).
		Msg("Ingestion finished")
	return summary, nil
}

func (p *Pipeline) ingestOne(ctx context.Context, ref models.DocumentRef) (int, error) {
	content, err := p.source.Fetch(ref.Identifier)
	if err != nil {
		return 0, &models.FetchError{Identifier: ref.Identifier, Err: err}
	}

	chunks := p.chunker.Split(content)

	chunkEmbeddings, err := embedding.GenerateEmbeddings(ctx, p.embedder, ref.Identifier, chunks, p.embedTimeout)
	if err != nil {
		// Nothing was written yet, so the previous version stays intact.
		return 0, err
	}

	if err := p.store.ReplaceDocument(ctx, ref, chunkEmbeddings); err != nil {
		return 0, err
	}
	return len(chunkEmbeddings), nil
}
