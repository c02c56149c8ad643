// Package rag is the answer synthesizer: it combines retrieved chunks,
// recent conversation turns and the new question into one model call and
// returns a grounded answer with provenance.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"knowledgebase/internal/config"
	"knowledgebase/internal/models"
	"knowledgebase/internal/redact"
	"knowledgebase/internal/retrieval"
	"knowledgebase/internal/session"
)

// Generator performs exactly one language model call per question.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// AnswerCache looks up and stores answers keyed by question embedding.
type AnswerCache interface {
	LookupCachedAnswer(ctx context.Context, embedding []float32, threshold float64) (string, float64, bool, error)
	StoreCachedAnswer(ctx context.Context, embedding []float32, answer string) error
}

type RAG struct {
	engine    *retrieval.Engine
	generator Generator
	memory    *session.Memory
	cache     AnswerCache
	cfg       *config.Config
}

// NewRAG wires the synthesizer. memory and cache may be nil; the question
// then runs without conversational context or semantic caching.
func NewRAG(engine *retrieval.Engine, generator Generator, memory *session.Memory, cache AnswerCache, cfg *config.Config) *RAG {
	return &RAG{engine: engine, generator: generator, memory: memory, cache: cache, cfg: cfg}
}

type QueryRequest struct {
	Question  string
	SessionID string
	UserID    string
}

// Query answers one question. The turn is recorded in session memory only
// after the model call fully succeeds, so an aborted request leaves no
// partial turn behind.
func (r *RAG) Query(ctx context.Context, req QueryRequest) (*models.QueryResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, &models.ValidationError{Msg: "question must not be empty"}
	}
	if len(req.Question) > r.cfg.RAG.MaxQuestionLen {
		return nil, &models.ValidationError{
			Msg: fmt.Sprintf("question exceeds maximum length of %d characters", r.cfg.RAG.MaxQuestionLen),
		}
	}

	history := r.loadHistory(ctx, req.SessionID)

	queryVec, err := r.engine.EmbedQuestion(ctx, req.Question)
	if err != nil {
		return nil, err
	}

	if cached := r.lookupCache(ctx, queryVec); cached != nil {
		r.recordTurn(ctx, req, cached)
		return cached, nil
	}

	results, err := r.engine.SearchVector(ctx, queryVec)
	if err != nil {
		return nil, err
	}

	var response *models.QueryResponse
	if len(results) == 0 {
		// No chunk cleared the similarity threshold: say so instead of
		// letting the model invent an answer.
		response = &models.QueryResponse{
			Answer:    models.NotFoundAnswer,
			Filenames: []string{},
			Sources:   []models.SourceCitation{},
		}
	} else {
		answer, err := r.synthesize(ctx, req.Question, results, history)
		if err != nil {
			return nil, err
		}
		response = &models.QueryResponse{
			Answer:    answer,
			Filenames: distinctFilenames(results),
			Sources:   citations(results),
		}
		r.storeCache(ctx, queryVec, answer)
	}

	r.recordTurn(ctx, req, response)
	log.Info().
		Str("question", redact.Scrub(req.Question)).
		Int("sources", len(response.Sources)).
		Bool("cached", response.Cached).
		Msg("Question answered")
	return response, nil
}

// loadHistory degrades gracefully: retrieval grounds the answer, so a cache
// outage only costs conversational context, never the question itself.
func (r *RAG) loadHistory(ctx context.Context, sessionID string) []models.ConversationTurn {
	if r.memory == nil || sessionID == "" {
		return nil
	}
	turns, err := r.memory.Window(ctx, sessionID, r.cfg.RAG.HistoryWindow)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("Session memory unavailable, continuing without history")
		return nil
	}
	return turns
}

func (r *RAG) lookupCache(ctx context.Context, queryVec []float32) *models.QueryResponse {
	if r.cache == nil {
		return nil
	}
	answer, similarity, ok, err := r.cache.LookupCachedAnswer(ctx, queryVec, r.cfg.RAG.CacheThreshold)
	if err != nil {
		log.Warn().Err(err).Msg("Semantic cache lookup failed")
		return nil
	}
	if !ok {
		return nil
	}
	log.Debug().Float64("similarity", similarity).Msg("Semantic cache hit")
	return &models.QueryResponse{
		Answer:    answer,
		Filenames: []string{},
		Sources:   []models.SourceCitation{},
		Cached:    true,
	}
}

func (r *RAG) storeCache(ctx context.Context, queryVec []float32, answer string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.StoreCachedAnswer(ctx, queryVec, answer); err != nil {
		log.Warn().Err(err).Msg("Semantic cache store failed")
	}
}

func (r *RAG) synthesize(ctx context.Context, question string, results []models.SearchResult, history []models.ConversationTurn) (string, error) {
	system := fmt.Sprintf(models.SystemPromptTemplate, models.NotFoundAnswer)
	prompt := fmt.Sprintf(models.QAPromptTemplate,
		retrieval.ContextWindow(results),
		renderHistory(history),
		question,
	)
	return r.generator.Generate(ctx, system, prompt)
}

// recordTurn appends the finished turn to session memory. Failures are
// logged, not surfaced: the answer already exists and belongs to the caller.
func (r *RAG) recordTurn(ctx context.Context, req QueryRequest, response *models.QueryResponse) {
	if r.memory == nil || req.SessionID == "" {
		return
	}
	turn := models.ConversationTurn{
		Question: req.Question,
		Answer:   response.Answer,
		Sources:  response.Sources,
	}
	if err := r.memory.AppendTurn(ctx, req.SessionID, turn); err != nil {
		log.Warn().Err(err).Str("session_id", req.SessionID).Msg("Failed to record turn in session memory")
	}
}

func renderHistory(history []models.ConversationTurn) string {
	if len(history) == 0 {
		return "(no previous turns)"
	}
	var b strings.Builder
	for _, turn := range history {
		b.WriteString("User: " + turn.Question + "\n")
		b.WriteString("Assistant: " + turn.Answer + "\n")
	}
	return b.String()
}

func distinctFilenames(results []models.SearchResult) []string {
	seen := make(map[string]bool, len(results))
	var filenames []string
	for _, res := range results {
		if seen[res.Filename] {
			continue
		}
		seen[res.Filename] = true
		filenames = append(filenames, res.Filename)
	}
	return filenames
}

func citations(results []models.SearchResult) []models.SourceCitation {
	cites := make([]models.SourceCitation, len(results))
	for i, res := range results {
		excerpt := res.Content
		if len(excerpt) > models.ExcerptLength {
			excerpt = excerpt[:models.ExcerptLength]
		}
		cites[i] = models.SourceCitation{
			Filename:   res.Filename,
			Similarity: res.Similarity,
			Excerpt:    excerpt,
		}
	}
	return cites
}
