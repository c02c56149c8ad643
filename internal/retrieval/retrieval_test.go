package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledgebase/internal/models"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

type fakeSearcher struct {
	results []models.SearchResult
	err     error
	gotK    int
	gotMin  float64
}

func (f *fakeSearcher) Search(ctx context.Context, embedding []float32, k int, minSimilarity float64) ([]models.SearchResult, error) {
	f.gotK = k
	f.gotMin = minSimilarity
	return f.results, f.err
}

func result(file string, seq int, sim float64) models.SearchResult {
	return models.SearchResult{Content: "chunk", Filename: file, SequenceIndex: seq, Similarity: sim}
}

func TestRetrieveOrdersBySimilarityThenFilenameThenIndex(t *testing.T) {
	searcher := &fakeSearcher{results: []models.SearchResult{
		result("b.md", 0, 0.8),
		result("a.md", 2, 0.8),
		result("a.md", 1, 0.8),
		result("c.md", 0, 0.9),
	}}
	e := NewEngine(&fakeEmbedder{vec: []float32{1, 0}}, searcher, 5, 0.3, time.Second, time.Second)

	results, vec, err := e.Retrieve(context.Background(), "how do I deploy?")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
	require.Len(t, results, 4)
	assert.Equal(t, "c.md", results[0].Filename)
	assert.Equal(t, "a.md", results[1].Filename)
	assert.Equal(t, 1, results[1].SequenceIndex)
	assert.Equal(t, 2, results[2].SequenceIndex)
	assert.Equal(t, "b.md", results[3].Filename)
}

func TestSearchVectorFiltersBelowThreshold(t *testing.T) {
	searcher := &fakeSearcher{results: []models.SearchResult{
		result("a.md", 0, 0.95),
		result("b.md", 0, 0.29),
		result("c.md", 0, 0.3),
	}}
	e := NewEngine(&fakeEmbedder{}, searcher, 5, 0.3, time.Second, time.Second)

	results, err := e.SearchVector(context.Background(), []float32{1})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.md", results[0].Filename)
	assert.Equal(t, "c.md", results[1].Filename)
	assert.Equal(t, 0.3, searcher.gotMin)
}

func TestSearchVectorTruncatesToTopK(t *testing.T) {
	searcher := &fakeSearcher{results: []models.SearchResult{
		result("a.md", 0, 0.9),
		result("b.md", 0, 0.8),
		result("c.md", 0, 0.7),
	}}
	e := NewEngine(&fakeEmbedder{}, searcher, 2, 0.3, time.Second, time.Second)

	results, err := e.SearchVector(context.Background(), []float32{1})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b.md", results[1].Filename)
	assert.Equal(t, 2, searcher.gotK)
}

func TestSearchVectorEmptyCorpus(t *testing.T) {
	e := NewEngine(&fakeEmbedder{}, &fakeSearcher{}, 5, 0.3, time.Second, time.Second)

	results, err := e.SearchVector(context.Background(), []float32{1})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieveWrapsEmbedderFailure(t *testing.T) {
	e := NewEngine(&fakeEmbedder{err: errors.New("boom")}, &fakeSearcher{}, 5, 0.3, time.Second, time.Second)

	_, _, err := e.Retrieve(context.Background(), "anything")
	require.Error(t, err)
	var provErr *models.ProviderError
	assert.ErrorAs(t, err, &provErr)
}

func TestContextWindow(t *testing.T) {
	out := ContextWindow([]models.SearchResult{
		{Filename: "guides/setup.md", Content: "install git"},
		{Filename: "guides/deploy.md", Content: "push to main"},
	})
	assert.Equal(t, "[guides/setup.md]\ninstall git\n\n[guides/deploy.md]\npush to main\n\n", out)
}
