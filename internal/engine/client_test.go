package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIComplete_SendsSystemAndUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, 0.1, req.Temperature)
		assert.Equal(t, 8000, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		json.NewEncoder(w).Encode(chatResponse{Choices: []chatChoice{
			{Message: chatMessage{Role: "assistant", Content: "first"}},
			{Message: chatMessage{Role: "assistant", Content: "second"}},
		}})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", WithModel("test-model"), WithBaseURL(srv.URL+"/"))
	got, err := c.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "rules",
		UserMessage:  "hi",
		Temperature:  0.1,
		MaxTokens:    8000,
	})
	require.NoError(t, err)
	assert.Equal(t, "first", got)
}

func TestOpenAIComplete_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"invalid api key"}}`, false},
		{"bad request", http.StatusBadRequest, "bad request", false},
		{"rate limited", http.StatusTooManyRequests, "slow down", true},
		{"server error", http.StatusInternalServerError, "boom", true},
		{"empty choices", http.StatusOK, `{"choices":[]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				attempts++
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewOpenAIClient("sk-test", WithBaseURL(srv.URL))
			_, err := c.Complete(context.Background(), CompletionRequest{UserMessage: "hi"})
			require.Error(t, err)
			assert.Equal(t, tt.retryable, retryable(err))
			assert.Equal(t, 1, attempts, "clients never retry on their own")
		})
	}
}

func TestClaudeComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))

		var req claudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "rules", req.System)
		assert.Equal(t, 4096, req.MaxTokens)

		w.Write([]byte(`{"content":[{"type":"tool_use"},{"type":"text","text":"done"}]}`))
	}))
	defer srv.Close()

	c := NewClaudeClient("sk-ant", WithClaudeBaseURL(srv.URL))
	got, err := c.Complete(context.Background(), CompletionRequest{SystemPrompt: "rules", UserMessage: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "done", got)
}

func TestClaudeComplete_NoText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	c := NewClaudeClient("sk-ant", WithClaudeBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), CompletionRequest{UserMessage: "hi"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOllamaComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "rules", req.System)
		assert.Equal(t, 100, req.Options.NumPredict)

		w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, WithOllamaModel("coder"))
	got, err := c.Complete(context.Background(), CompletionRequest{SystemPrompt: "rules", UserMessage: "hi", MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(context.DeadlineExceeded))
	assert.False(t, retryable(context.Canceled))
	assert.False(t, retryable(errors.New("parse failure")))
	assert.True(t, retryable(&apiError{StatusCode: http.StatusBadGateway}))
	assert.False(t, retryable(&apiError{StatusCode: http.StatusForbidden}))
}

func TestNewModelClient(t *testing.T) {
	ctx := context.Background()

	c, err := NewModelClient(ctx, ClientConfig{})
	require.NoError(t, err)
	assert.IsType(t, &StubModelClient{}, c)

	c, err = NewModelClient(ctx, ClientConfig{Provider: "openai", OpenAIKey: "sk"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = NewModelClient(ctx, ClientConfig{Provider: "ollama"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, c)

	_, err = NewModelClient(ctx, ClientConfig{Provider: "claude"})
	assert.Error(t, err)

	_, err = NewModelClient(ctx, ClientConfig{Provider: "mystery"})
	assert.Error(t, err)
}

func newGeminiTestClient(t *testing.T, h http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewGeminiClient(context.Background(), "gm-test",
		WithGeminiModel("gemini-test"),
		WithGeminiBaseURL(srv.URL),
		WithGeminiHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return c
}

func TestGeminiComplete(t *testing.T) {
	c := newGeminiTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "gm-test", r.Header.Get("x-goog-api-key"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req, "systemInstruction")
		assert.Contains(t, req, "contents")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"x = 1"}]}}]}`))
	})

	got, err := c.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "rules",
		UserMessage:  "hi",
		Temperature:  0.1,
		MaxTokens:    100,
	})
	require.NoError(t, err)
	assert.Equal(t, "x = 1", got)
}

func TestGeminiComplete_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		empty     bool
		retryable bool
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`, false, true},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`, false, true},
		{"bad request", http.StatusBadRequest, `{"error":{"code":400,"message":"bad model","status":"INVALID_ARGUMENT"}}`, false, false},
		{"empty candidates", http.StatusOK, `{"candidates":[]}`, true, true},
		{"empty text", http.StatusOK, `{"candidates":[{"content":{"role":"model","parts":[{"text":""}]}}]}`, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newGeminiTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.Complete(context.Background(), CompletionRequest{UserMessage: "hi"})
			require.Error(t, err)
			assert.Equal(t, tt.retryable, retryable(err), "error: %v", err)
			if tt.empty {
				assert.ErrorIs(t, err, ErrEmptyResponse)
				return
			}
			var ae *apiError
			require.True(t, errors.As(err, &ae), "want apiError, got %v", err)
			assert.Equal(t, tt.status, ae.StatusCode)
		})
	}
}

func TestNewModelClient_Gemini(t *testing.T) {
	c, err := NewModelClient(context.Background(), ClientConfig{Provider: "gemini", GeminiKey: "gm", GeminiModel: "gemini-test"})
	require.NoError(t, err)
	g, ok := c.(*GeminiClient)
	require.True(t, ok)
	assert.Equal(t, "gemini-test", g.model)

	_, err = NewModelClient(context.Background(), ClientConfig{Provider: "gemini"})
	assert.Error(t, err)
}
