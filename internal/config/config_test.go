package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	minimal := `
database:
  url: "postgres://localhost:5432/kb"
  password: "secret"
redis:
  url: "redis://localhost:6379/0"
`
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost:5432/kb", cfg.Database.URL)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, 0.3, cfg.RAG.MinSimilarity)
	assert.Equal(t, 5, cfg.RAG.HistoryWindow)
	assert.Equal(t, 2000, cfg.RAG.MaxQuestionLen)
	assert.Equal(t, 0.95, cfg.RAG.CacheThreshold)
	assert.Equal(t, 1024, cfg.RAG.VectorSize)
	assert.Equal(t, time.Hour, cfg.Session.TTL())
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Embed())
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Search())
	assert.Equal(t, time.Minute, cfg.Timeouts.Generate())
}

func TestLoadConfigKeepsExplicitValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	explicit := `
rag:
  chunk_size: 500
  top_k: 3
  min_similarity: 0.5
session:
  ttl_seconds: 120
`
	require.NoError(t, os.WriteFile(path, []byte(explicit), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 3, cfg.RAG.TopK)
	assert.Equal(t, 0.5, cfg.RAG.MinSimilarity)
	assert.Equal(t, 2*time.Minute, cfg.Session.TTL())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [not: a map"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
