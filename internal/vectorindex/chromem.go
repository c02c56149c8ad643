// Package vectorindex provides an in-process approximate-nearest-neighbor
// store backed by chromem-go. It serves local deployments without Postgres
// and keeps tests free of external services.
package vectorindex

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"

	"knowledgebase/internal/models"
)

type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// New opens (or creates) the index. An empty path selects a purely in-memory
// database.
func New(path, collectionName string) (*Index, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("opening vector index: %w", err)
		}
	}
	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}
	return &Index{db: db, collection: collection}, nil
}

// ReplaceDocument removes every chunk previously stored for the document and
// adds the new set.
func (ix *Index) ReplaceDocument(ctx context.Context, ref models.DocumentRef, chunks []models.ChunkEmbedding) error {
	if err := ix.collection.Delete(ctx, map[string]string{"filename": ref.Identifier}, nil); err != nil {
		return fmt.Errorf("deleting previous chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(chunks))
	for i, ce := range chunks {
		metadata := map[string]string{
			"filename":       ref.Identifier,
			"category":       ref.Category,
			"sequence_index": strconv.Itoa(ce.SequenceIndex),
		}
		for k, v := range ce.Metadata {
			metadata[k] = v
		}
		docs[i] = chromem.Document{
			ID:        fmt.Sprintf("%s:%d", ref.Identifier, ce.SequenceIndex),
			Content:   ce.Content,
			Metadata:  metadata,
			Embedding: ce.Embedding,
		}
	}
	if err := ix.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding chunks: %w", err)
	}
	return nil
}

// Search returns up to k chunks with cosine similarity >= minSimilarity,
// ordered like the Postgres store: similarity descending, then filename,
// then sequence index.
func (ix *Index) Search(ctx context.Context, embedding []float32, k int, minSimilarity float64) ([]models.SearchResult, error) {
	count := ix.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	found, err := ix.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       k,
	})
	if err != nil {
		return nil, fmt.Errorf("vector index query: %w", err)
	}

	var results []models.SearchResult
	for _, res := range found {
		similarity := float64(res.Similarity)
		if similarity < minSimilarity {
			continue
		}
		seq, _ := strconv.Atoi(res.Metadata["sequence_index"])
		results = append(results, models.SearchResult{
			Content:       res.Content,
			Filename:      res.Metadata["filename"],
			Category:      res.Metadata["category"],
			SequenceIndex: seq,
			Similarity:    similarity,
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
	return results, nil
}
