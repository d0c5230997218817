package engine

import "context"

// CompletionRequest is one call to a text-generation service.
type CompletionRequest struct {
	SystemPrompt string  `json:"system_prompt"`
	UserMessage  string  `json:"user_message"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
}

// ModelClient abstracts the text-generation service. Implementations read only
// the first candidate of a response and never retry on their own.
type ModelClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
