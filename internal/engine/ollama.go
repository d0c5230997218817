package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaClient implements ModelClient using the local Ollama API.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// OllamaOption configures the Ollama client.
type OllamaOption func(*OllamaClient)

// WithOllamaModel sets the model name.
func WithOllamaModel(model string) OllamaOption {
	return func(c *OllamaClient) {
		if model != "" {
			c.model = model
		}
	}
}

// NewOllamaClient creates a new Ollama model client.
func NewOllamaClient(baseURL string, opts ...OllamaOption) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	c := &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   "qwen2.5-coder",
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	System  string        `json:"system,omitempty"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Complete runs one non-streaming generation.
func (c *OllamaClient) Complete(ctx context.Context, in CompletionRequest) (string, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:  c.model,
		System: in.SystemPrompt,
		Prompt: in.UserMessage,
		Options: ollamaOptions{
			Temperature: in.Temperature,
			NumPredict:  in.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	out, err := c.doRequest(ctx, body)
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	return out, nil
}

func (c *OllamaClient) doRequest(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &apiError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(respBody, &ollamaResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if ollamaResp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", ollamaResp.Error)
	}

	if ollamaResp.Response == "" {
		return "", ErrEmptyResponse
	}
	return ollamaResp.Response, nil
}
