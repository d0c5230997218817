package engine

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/yangwenmai/scanforge/internal/model"
)

// Default generation settings.
const (
	DefaultTimeout     = 120 * time.Second
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 8000
)

// DefaultMaxSourceRunes bounds the source embedded in one user message.
const DefaultMaxSourceRunes = 60000

// Transformer is the generative stage: it builds the instruction payload,
// makes exactly one model call bounded by a timeout and extracts the code.
// Its output is not trusted; the compliance enforcer runs on it next.
type Transformer struct {
	client      ModelClient
	timeout     time.Duration
	temperature float64
	maxTokens   int
	maxSource   int
}

// TransformerOption configures a Transformer.
type TransformerOption func(*Transformer)

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) TransformerOption {
	return func(t *Transformer) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float64) TransformerOption {
	return func(t *Transformer) { t.temperature = temp }
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int) TransformerOption {
	return func(t *Transformer) {
		if n > 0 {
			t.maxTokens = n
		}
	}
}

// WithMaxSourceRunes sets the largest source, in runes, sent to the model.
// Larger sources are rejected rather than cut.
func WithMaxSourceRunes(n int) TransformerOption {
	return func(t *Transformer) {
		if n > 0 {
			t.maxSource = n
		}
	}
}

// NewTransformer creates a Transformer around a model client.
func NewTransformer(client ModelClient, opts ...TransformerOption) *Transformer {
	t := &Transformer{
		client:      client,
		timeout:     DefaultTimeout,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		maxSource:   DefaultMaxSourceRunes,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform runs one generation. Every failure is a *model.GenerationError.
func (t *Transformer) Transform(ctx context.Context, req model.TransformationRequest) (model.FormattedArtifact, error) {
	kind := req.Kind
	if kind == "" {
		kind = model.TransformV31Standardize
	}
	if !model.ValidTransformationKind(kind) {
		return model.FormattedArtifact{}, &model.GenerationError{
			Reason: fmt.Sprintf("unknown transformation kind %q", kind),
		}
	}

	if n := utf8.RuneCountInString(req.Source.Code); n > t.maxSource {
		return model.FormattedArtifact{}, &model.GenerationError{
			Reason: fmt.Sprintf("source has %d runes, limit is %d", n, t.maxSource),
			Err:    ErrSourceTooLarge,
		}
	}

	user, err := BuildUserMessage(req)
	if err != nil {
		return model.FormattedArtifact{}, &model.GenerationError{Reason: "build payload", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	resp, err := t.client.Complete(ctx, CompletionRequest{
		SystemPrompt: SystemPrompt(kind),
		UserMessage:  user,
		Temperature:  t.temperature,
		MaxTokens:    t.maxTokens,
	})
	if err != nil {
		return model.FormattedArtifact{}, &model.GenerationError{
			Reason:    "model call failed",
			Retryable: retryable(err),
			Err:       err,
		}
	}

	code := ExtractCode(resp)
	if code == "" {
		return model.FormattedArtifact{}, &model.GenerationError{
			Reason:    "empty code in response",
			Retryable: true,
			Err:       ErrEmptyResponse,
		}
	}

	return model.FormattedArtifact{
		Code:            code + "\n",
		Transformations: []string{fmt.Sprintf("Generated %s rewrite", kind)},
	}, nil
}
