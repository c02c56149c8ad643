// Package retrieval ranks stored chunks against a query embedding and
// assembles the grounding context for answer synthesis.
package retrieval

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"knowledgebase/internal/embedding"
	"knowledgebase/internal/models"
)

// Searcher is the nearest-neighbor contract both the Postgres store and the
// chromem index satisfy.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, k int, minSimilarity float64) ([]models.SearchResult, error)
}

type Engine struct {
	embedder      embeddings.Embedder
	searcher      Searcher
	topK          int
	minSimilarity float64
	embedTimeout  time.Duration
	searchTimeout time.Duration
}

func NewEngine(embedder embeddings.Embedder, searcher Searcher, topK int, minSimilarity float64, embedTimeout, searchTimeout time.Duration) *Engine {
	return &Engine{
		embedder:      embedder,
		searcher:      searcher,
		topK:          topK,
		minSimilarity: minSimilarity,
		embedTimeout:  embedTimeout,
		searchTimeout: searchTimeout,
	}
}

// EmbedQuestion converts the question into a query vector under the embed
// timeout.
func (e *Engine) EmbedQuestion(ctx context.Context, question string) ([]float32, error) {
	return embedding.EmbedQuery(ctx, e.embedder, question, e.embedTimeout)
}

// Retrieve embeds the question and returns the ranked chunks above the
// similarity threshold, plus the query embedding for reuse by the caller.
// An empty result is not an error: it means the corpus holds no relevant
// knowledge and the synthesizer must say so.
func (e *Engine) Retrieve(ctx context.Context, question string) ([]models.SearchResult, []float32, error) {
	vec, err := e.EmbedQuestion(ctx, question)
	if err != nil {
		return nil, nil, err
	}
	results, err := e.SearchVector(ctx, vec)
	if err != nil {
		return nil, nil, err
	}
	return results, vec, nil
}

// SearchVector queries the store with an already-computed embedding.
func (e *Engine) SearchVector(ctx context.Context, vec []float32) ([]models.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.searchTimeout)
	defer cancel()

	results, err := e.searcher.Search(ctx, vec, e.topK, e.minSimilarity)
	if err != nil {
		return nil, err
	}

	// The stores already order their output; re-apply the contract here so
	// ranking stays deterministic regardless of backend.
	filtered := results[:0]
	for _, res := range results {
		if res.Similarity >= e.minSimilarity {
			filtered = append(filtered, res)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Similarity != filtered[j].Similarity {
			return filtered[i].Similarity > filtered[j].Similarity
		}
		if filtered[i].Filename != filtered[j].Filename {
			return filtered[i].Filename < filtered[j].Filename
		}
		return filtered[i].SequenceIndex < filtered[j].SequenceIndex
	})
	if len(filtered) > e.topK {
		filtered = filtered[:e.topK]
	}

	log.Debug().Int("results", len(filtered)).Msg("Retrieval complete")
	return filtered, nil
}

// ContextWindow renders retrieved chunks into the prompt context block.
func ContextWindow(results []models.SearchResult) string {
	var b strings.Builder
	for _, res := range results {
		b.WriteString("[" + res.Filename + "]\n")
		b.WriteString(res.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}
