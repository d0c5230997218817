package engine

import (
	"context"
	"fmt"
)

// ClientConfig selects and configures a model client.
type ClientConfig struct {
	Provider string

	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	ClaudeKey   string
	ClaudeModel string

	GeminiKey   string
	GeminiModel string

	OllamaURL   string
	OllamaModel string
}

// NewModelClient builds the client for cfg.Provider. "stub" or an empty
// provider returns the offline stub.
func NewModelClient(ctx context.Context, cfg ClientConfig) (ModelClient, error) {
	switch cfg.Provider {
	case "", "stub":
		return &StubModelClient{}, nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return NewOpenAIClient(cfg.OpenAIKey, WithBaseURL(cfg.OpenAIBaseURL), WithModel(cfg.OpenAIModel)), nil
	case "claude":
		if cfg.ClaudeKey == "" {
			return nil, fmt.Errorf("claude provider requires an API key")
		}
		return NewClaudeClient(cfg.ClaudeKey, WithClaudeModel(cfg.ClaudeModel)), nil
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key")
		}
		c, err := NewGeminiClient(ctx, cfg.GeminiKey, WithGeminiModel(cfg.GeminiModel))
		if err != nil {
			return nil, err
		}
		return c, nil
	case "ollama":
		return NewOllamaClient(cfg.OllamaURL, WithOllamaModel(cfg.OllamaModel)), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
