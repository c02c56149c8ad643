package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledgebase/internal/chunker"
	"knowledgebase/internal/models"
)

type fakeSource struct {
	refs     []models.DocumentRef
	contents map[string]string
	fetchErr map[string]error
}

func (f *fakeSource) List() ([]models.DocumentRef, error) { return f.refs, nil }

func (f *fakeSource) Fetch(identifier string) (string, error) {
	if err, ok := f.fetchErr[identifier]; ok {
		return "", err
	}
	return f.contents[identifier], nil
}

type countingEmbedder struct {
	failOn string
}

func (e *countingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (e *countingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.failOn != "" && text == e.failOn {
		return nil, errors.New("provider unavailable")
	}
	return []float32{0.1, 0.2}, nil
}

type fakeStore struct {
	replaced map[string][]models.ChunkEmbedding
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{replaced: make(map[string][]models.ChunkEmbedding)}
}

func (f *fakeStore) ReplaceDocument(ctx context.Context, ref models.DocumentRef, chunks []models.ChunkEmbedding) error {
	if f.err != nil {
		return f.err
	}
	f.replaced[ref.Identifier] = chunks
	return nil
}

func newPipeline(source *fakeSource, embedder *countingEmbedder, store *fakeStore) *Pipeline {
	return NewPipeline(source, chunker.New(1000, 200), embedder, store, time.Second)
}

func TestRunIngestsAllDocuments(t *testing.T) {
	source := &fakeSource{
		refs: []models.DocumentRef{
			{Identifier: "guides/a.md", Category: "guides"},
			{Identifier: "guides/b.md", Category: "guides"},
		},
		contents: map[string]string{
			"guides/a.md": "first document body",
			"guides/b.md": "second document body",
		},
	}
	store := newFakeStore()

	summary, err := newPipeline(source, &countingEmbedder{}, store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.DocumentsProcessed)
	assert.Equal(t, 2, summary.ChunksCreated)
	assert.Empty(t, summary.Failures)
	require.Len(t, store.replaced, 2)
	assert.Equal(t, "guides/a.md", store.replaced["guides/a.md"][0].SourceFilename)
}

func TestRunSkipsUnreachableDocument(t *testing.T) {
	source := &fakeSource{
		refs: []models.DocumentRef{
			{Identifier: "guides/broken.md", Category: "guides"},
			{Identifier: "guides/ok.md", Category: "guides"},
		},
		contents: map[string]string{"guides/ok.md": "fine"},
		fetchErr: map[string]error{"guides/broken.md": errors.New("read failed")},
	}
	store := newFakeStore()

	summary, err := newPipeline(source, &countingEmbedder{}, store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DocumentsProcessed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "guides/broken.md", summary.Failures[0].Identifier)
	assert.NotContains(t, store.replaced, "guides/broken.md")
	assert.Contains(t, store.replaced, "guides/ok.md")
}

func TestRunProviderFaultAbortsOnlyThatDocument(t *testing.T) {
	source := &fakeSource{
		refs: []models.DocumentRef{
			{Identifier: "guides/bad.md", Category: "guides"},
			{Identifier: "guides/good.md", Category: "guides"},
		},
		contents: map[string]string{
			"guides/bad.md":  "unembeddable",
			"guides/good.md": "embeds fine",
		},
	}
	store := newFakeStore()

	summary, err := newPipeline(source, &countingEmbedder{failOn: "unembeddable"}, store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DocumentsProcessed)
	require.Len(t, summary.Failures, 1)

	// The faulted document writes nothing, so any previous version survives.
	assert.NotContains(t, store.replaced, "guides/bad.md")
	assert.Contains(t, store.replaced, "guides/good.md")
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	source := &fakeSource{
		refs:     []models.DocumentRef{{Identifier: "guides/a.md", Category: "guides"}},
		contents: map[string]string{"guides/a.md": "body"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := newPipeline(source, &countingEmbedder{}, newFakeStore()).Run(ctx)
	require.Error(t, err)
	assert.Zero(t, summary.DocumentsProcessed)
}

func TestRunReplacementIsIdempotent(t *testing.T) {
	source := &fakeSource{
		refs:     []models.DocumentRef{{Identifier: "guides/a.md", Category: "guides"}},
		contents: map[string]string{"guides/a.md": "unchanged content"},
	}
	store := newFakeStore()
	p := newPipeline(source, &countingEmbedder{}, store)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	first := store.replaced["guides/a.md"]

	_, err = p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, store.replaced["guides/a.md"])
}
