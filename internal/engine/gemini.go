package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// GeminiClient implements ModelClient on top of the Gemini SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

type geminiSettings struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// GeminiOption configures the Gemini client.
type GeminiOption func(*geminiSettings)

// WithGeminiModel sets the model name.
func WithGeminiModel(model string) GeminiOption {
	return func(s *geminiSettings) {
		if model != "" {
			s.model = model
		}
	}
}

// WithGeminiBaseURL points the client at a different API endpoint.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(s *geminiSettings) { s.baseURL = url }
}

// WithGeminiHTTPClient sets the HTTP client used by the SDK.
func WithGeminiHTTPClient(hc *http.Client) GeminiOption {
	return func(s *geminiSettings) { s.httpClient = hc }
}

// NewGeminiClient creates a Gemini client for the Gemini API backend.
func NewGeminiClient(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	s := geminiSettings{model: "gemini-2.0-flash"}
	for _, opt := range opts {
		opt(&s)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  s.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: s.baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{client: client, model: s.model}, nil
}

// Complete generates content and returns the text of the first candidate.
func (c *GeminiClient) Complete(ctx context.Context, in CompletionRequest) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(in.Temperature)),
		MaxOutputTokens: int32(in.MaxTokens),
	}
	if in.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(in.SystemPrompt, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(in.UserMessage), cfg)
	if err != nil {
		// The SDK returns APIError by value.
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			err = &apiError{StatusCode: apiErr.Code, Body: apiErr.Message}
		}
		return "", fmt.Errorf("gemini: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	return text, nil
}
