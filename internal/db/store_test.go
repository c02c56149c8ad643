package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(file string, seq int, sim float64) searchRow {
	return searchRow{Content: "chunk", Filename: file, SequenceIndex: seq, Similarity: sim}
}

func TestCollectResultsFiltersBelowThreshold(t *testing.T) {
	rows := []searchRow{
		row("a.md", 0, 0.9),
		row("b.md", 0, 0.29),
		row("c.md", 0, 0.3),
	}

	results := collectResults(rows, 0.3)
	require.Len(t, results, 2)
	assert.Equal(t, "a.md", results[0].Filename)
	assert.Equal(t, "c.md", results[1].Filename)
}

func TestCollectResultsAppliesTieBreakOrdering(t *testing.T) {
	// Nearest-k rows arrive in distance order only; equal similarities carry
	// no ordering guarantee from the index scan.
	rows := []searchRow{
		row("b.md", 0, 0.8),
		row("a.md", 2, 0.8),
		row("a.md", 1, 0.8),
		row("c.md", 0, 0.9),
	}

	results := collectResults(rows, 0)
	require.Len(t, results, 4)
	assert.Equal(t, "c.md", results[0].Filename)
	assert.Equal(t, "a.md", results[1].Filename)
	assert.Equal(t, 1, results[1].SequenceIndex)
	assert.Equal(t, 2, results[2].SequenceIndex)
	assert.Equal(t, "b.md", results[3].Filename)
}

func TestCollectResultsEmpty(t *testing.T) {
	results := collectResults(nil, 0.3)
	assert.Empty(t, results)
}
