package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"knowledgebase/internal/config"
	"knowledgebase/internal/models"
)

// NewEmbedder builds an embedder for the configured provider. The client is
// created once at process start and injected into components; request paths
// never re-initialize it.
func NewEmbedder(cfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	switch cfg.Provider {
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama embedder: %w", err)
		}
		return embeddings.NewEmbedder(llm)
	default:
		llm, err := openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("initializing openai embedder: %w", err)
		}
		return embeddings.NewEmbedder(llm)
	}
}

// EmbedQuery embeds a single text under its own timeout. Provider faults are
// surfaced as ProviderError.
func EmbedQuery(ctx context.Context, embedder embeddings.Embedder, text string, timeout time.Duration) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	vec, err := embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, &models.ProviderError{Op: "embed", Err: err}
	}
	return vec, nil
}

// GenerateEmbeddings embeds every chunk of one document. A fault on any
// chunk aborts the whole document so no partial chunk set is ever stored.
func GenerateEmbeddings(ctx context.Context, embedder embeddings.Embedder, filename string, chunks []models.Chunk, timeout time.Duration) ([]models.ChunkEmbedding, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	chunkEmbeddings := make([]models.ChunkEmbedding, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := EmbedQuery(ctx, embedder, chunk.Content, timeout)
		if err != nil {
			return nil, err
		}
		chunkEmbeddings = append(chunkEmbeddings, models.ChunkEmbedding{
			Content:        chunk.Content,
			Embedding:      vec,
			SequenceIndex:  chunk.Index,
			SourceFilename: filename,
			Metadata:       chunk.Metadata,
		})
	}
	return chunkEmbeddings, nil
}
