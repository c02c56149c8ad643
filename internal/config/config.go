package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable for the knowledge base. Defaults are applied in
// LoadConfig so that a minimal config file (connection details only) works.
type Config struct {
	Database     DatabaseConfig `yaml:"database"`
	Redis        RedisConfig    `yaml:"redis"`
	EmbedLLM     LLMConfig      `yaml:"embed_llm"`
	InferenceLLM LLMConfig      `yaml:"inference_llm"`
	RAG          RAGConfig      `yaml:"rag"`
	Session      SessionConfig  `yaml:"session"`
	Timeouts     TimeoutConfig  `yaml:"timeouts"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// LLMConfig identifies one provider endpoint. Provider is "openai" for any
// OpenAI-compatible API (OpenRouter included) or "ollama" for a local server.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type RAGConfig struct {
	ChunkSize      int     `yaml:"chunk_size"`
	ChunkOverlap   int     `yaml:"chunk_overlap"`
	TopK           int     `yaml:"top_k"`
	MinSimilarity  float64 `yaml:"min_similarity"`
	HistoryWindow  int     `yaml:"history_window"`
	MaxQuestionLen int     `yaml:"max_question_len"`
	CacheThreshold float64 `yaml:"cache_threshold"`
	VectorSize     int     `yaml:"vector_size"`
}

type SessionConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// TimeoutConfig bounds each outbound call independently so a stuck provider
// fails the enclosing operation instead of hanging the request.
type TimeoutConfig struct {
	EmbedSeconds    int `yaml:"embed_seconds"`
	SearchSeconds   int `yaml:"search_seconds"`
	GenerateSeconds int `yaml:"generate_seconds"`
}

func (t TimeoutConfig) Embed() time.Duration {
	return time.Duration(t.EmbedSeconds) * time.Second
}

func (t TimeoutConfig) Search() time.Duration {
	return time.Duration(t.SearchSeconds) * time.Second
}

func (t TimeoutConfig) Generate() time.Duration {
	return time.Duration(t.GenerateSeconds) * time.Second
}

const (
	defaultChunkSize      = 1000
	defaultChunkOverlap   = 200
	defaultTopK           = 5
	defaultMinSimilarity  = 0.3
	defaultHistoryWindow  = 5
	defaultMaxQuestionLen = 2000
	defaultCacheThreshold = 0.95
	defaultVectorSize     = 1024

	defaultSessionTTLSeconds = 3600

	defaultEmbedTimeoutSeconds    = 30
	defaultSearchTimeoutSeconds   = 10
	defaultGenerateTimeoutSeconds = 60
)

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero-valued tunables with their documented defaults.
func (cfg *Config) ApplyDefaults() {
	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = defaultChunkSize
	}
	if cfg.RAG.ChunkOverlap <= 0 {
		cfg.RAG.ChunkOverlap = defaultChunkOverlap
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = defaultTopK
	}
	if cfg.RAG.MinSimilarity <= 0 {
		cfg.RAG.MinSimilarity = defaultMinSimilarity
	}
	if cfg.RAG.HistoryWindow <= 0 {
		cfg.RAG.HistoryWindow = defaultHistoryWindow
	}
	if cfg.RAG.MaxQuestionLen <= 0 {
		cfg.RAG.MaxQuestionLen = defaultMaxQuestionLen
	}
	if cfg.RAG.CacheThreshold <= 0 {
		cfg.RAG.CacheThreshold = defaultCacheThreshold
	}
	if cfg.RAG.VectorSize <= 0 {
		cfg.RAG.VectorSize = defaultVectorSize
	}
	if cfg.Session.TTLSeconds <= 0 {
		cfg.Session.TTLSeconds = defaultSessionTTLSeconds
	}
	if cfg.Timeouts.EmbedSeconds <= 0 {
		cfg.Timeouts.EmbedSeconds = defaultEmbedTimeoutSeconds
	}
	if cfg.Timeouts.SearchSeconds <= 0 {
		cfg.Timeouts.SearchSeconds = defaultSearchTimeoutSeconds
	}
	if cfg.Timeouts.GenerateSeconds <= 0 {
		cfg.Timeouts.GenerateSeconds = defaultGenerateTimeoutSeconds
	}
}
