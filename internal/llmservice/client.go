// Package llmservice wraps the language model behind a single-call contract:
// one prompt in, one answer out, no streaming, no agentic loop.
package llmservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"knowledgebase/internal/config"
	"knowledgebase/internal/models"
)

type Client struct {
	llm     llms.Model
	model   string
	timeout time.Duration
}

// NewClient creates the model client once; components receive it by
// injection and never rebuild it inside request paths.
func NewClient(cfg *config.LLMConfig, timeout time.Duration) (*Client, error) {
	var llm llms.Model
	var err error
	switch cfg.Provider {
	case "ollama":
		llm, err = ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	default:
		llm, err = openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing LLM client: %w", err)
	}
	return &Client{llm: llm, model: cfg.Model, timeout: timeout}, nil
}

// Generate performs exactly one model call under the configured timeout.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextContent{Text: system}},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}

	log.Debug().Str("model", c.model).Msg("Generating content")
	res, err := c.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", &models.ProviderError{Op: "generate", Err: err}
	}
	if len(res.Choices) == 0 {
		return "", &models.ProviderError{Op: "generate", Err: fmt.Errorf("model returned no choices")}
	}
	return res.Choices[0].Content, nil
}
