package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangwenmai/scanforge/internal/cache"
	"github.com/yangwenmai/scanforge/internal/engine"
	"github.com/yangwenmai/scanforge/internal/model"
)

const scanner = `import pandas as pd

P = {
    "price_min": 8.0,
    "gap_div_atr_min": 0.75,
}

class Scanner:
    def execute(self):
        return self.fetch_all_grouped_data()

    def label(self, df):
        df["$vol"] = df["c"] * df["v"]
        return df
`

// echo returns the scanner unchanged, leaving the structure to the enforcer.
type echo struct{ calls atomic.Int32 }

func (e *echo) Transform(_ context.Context, req model.TransformationRequest) (model.FormattedArtifact, error) {
	e.calls.Add(1)
	return model.FormattedArtifact{Code: req.Source.Code, Transformations: []string{"echo"}}, nil
}

// flaky fails with err for the first n calls and then echoes.
type flaky struct {
	echo
	n   int32
	err error
}

func (f *flaky) Transform(ctx context.Context, req model.TransformationRequest) (model.FormattedArtifact, error) {
	if f.calls.Load() < f.n {
		f.calls.Add(1)
		return model.FormattedArtifact{}, f.err
	}
	return f.echo.Transform(ctx, req)
}

type panicky struct{}

func (panicky) Transform(context.Context, model.TransformationRequest) (model.FormattedArtifact, error) {
	panic("boom")
}

func newTestOrchestrator(gen Generator, opts ...Option) *Orchestrator {
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRetry(2, 0),
		WithIDGenerator(func() string { return "wf-test" }),
	}
	return New(gen, append(base, opts...)...)
}

func stageNames(wf *model.Workflow) []string {
	names := []string{}
	for _, s := range wf.Stages {
		names = append(names, s.Name)
	}
	return names
}

func TestFormat_Success(t *testing.T) {
	o := newTestOrchestrator(&echo{})
	res := o.Format(context.Background(), Request{Code: scanner, Options: DefaultOptions()})

	require.True(t, res.Success, "error: %s", res.Workflow.Error)
	assert.Equal(t, model.WorkflowCompleted, res.Workflow.Status)
	assert.Equal(t, "wf-test", res.Workflow.ID)
	assert.Equal(t, Stages, stageNames(res.Workflow))
	for _, s := range res.Workflow.Stages {
		assert.Equal(t, model.StageSucceeded, s.Status, s.Name)
	}

	assert.Equal(t, 100, res.Summary.ValidationScore, "failed: %v", res.Compliance.Failed)
	assert.Equal(t, 2, res.Summary.ParametersPreserved)
	assert.Equal(t, 1, res.Summary.OptimizationsApplied)
	assert.Equal(t, Stages, res.Summary.AgentsUsed)
	assert.Equal(t, model.CountLines(scanner), res.Summary.OriginalLines)
	assert.Equal(t, model.CountLines(res.TransformedCode), res.Summary.TransformedLines)

	assert.Nil(t, res.Error)
	assert.Contains(t, res.TransformedCode, "def run_scan(")
	assert.Contains(t, res.TransformedCode, "dollar_volume")
	assert.NotContains(t, res.TransformedCode, "def execute(")
	assert.True(t, strings.HasPrefix(res.TransformedCode, `"""`))
	require.NotNil(t, res.Template)
	require.NotNil(t, res.Compliance)
}

func TestFormat_OptionalStagesSkipped(t *testing.T) {
	o := newTestOrchestrator(&echo{})
	opts := Options{TransformationType: model.TransformV31Standardize}
	res := o.Format(context.Background(), Request{Code: scanner, Options: opts})

	require.True(t, res.Success)
	for _, name := range []string{StageParameterPreservation, StageOptimization, StageDocumentation, StageValidation} {
		rec, ok := res.Workflow.Stage(name)
		require.True(t, ok, name)
		assert.Equal(t, model.StageSkipped, rec.Status, name)
	}
	assert.Equal(t, 0, res.Summary.ValidationScore)
	assert.Nil(t, res.Compliance)
	assert.Contains(t, res.TransformedCode, "$vol")
	assert.Equal(t, []string{StageAnalysis, StageParameterExtraction, StageTemplateClassification, StageGeneration, StageCompliance},
		res.Summary.AgentsUsed)
}

func TestFormat_GenerationFailure(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int32
	}{
		{
			name:      "retryable error is retried",
			err:       &model.GenerationError{Reason: "model call failed", Retryable: true, Err: errors.New("503")},
			wantCalls: 2,
		},
		{
			name:      "non-retryable error fails at once",
			err:       &model.GenerationError{Reason: "model call failed", Err: errors.New("401")},
			wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &flaky{n: 10, err: tt.err}
			res := newTestOrchestrator(gen).Format(context.Background(), Request{Code: scanner, Options: DefaultOptions()})

			assert.False(t, res.Success)
			assert.Equal(t, scanner, res.TransformedCode)
			assert.Equal(t, model.WorkflowFailed, res.Workflow.Status)
			assert.Contains(t, res.Workflow.Error, "generation")
			assert.Equal(t, 0, res.Summary.ValidationScore)
			assert.Equal(t, tt.wantCalls, gen.calls.Load())
			require.NotNil(t, res.Error)
			assert.Equal(t, StageGeneration, res.Error.FailedStage)

			rec, ok := res.Workflow.FailedStage()
			require.True(t, ok)
			assert.Equal(t, StageGeneration, rec.Name)
			assert.Equal(t, int(tt.wantCalls), rec.Attempts)
			assert.Equal(t, StageGeneration, res.Workflow.Stages[len(res.Workflow.Stages)-1].Name)
		})
	}
}

func TestFormat_RetryRecovers(t *testing.T) {
	gen := &flaky{n: 1, err: &model.GenerationError{Reason: "empty", Retryable: true}}
	res := newTestOrchestrator(gen).Format(context.Background(), Request{Code: scanner, Options: DefaultOptions()})

	require.True(t, res.Success)
	rec, ok := res.Workflow.Stage(StageGeneration)
	require.True(t, ok)
	assert.Equal(t, 2, rec.Attempts)
}

func TestFormat_PanicIsStageFailure(t *testing.T) {
	res := newTestOrchestrator(panicky{}).Format(context.Background(), Request{Code: scanner, Options: DefaultOptions()})

	assert.False(t, res.Success)
	assert.Equal(t, scanner, res.TransformedCode)
	rec, ok := res.Workflow.FailedStage()
	require.True(t, ok)
	assert.Equal(t, StageGeneration, rec.Name)
	assert.Contains(t, rec.Error, "panic: boom")
}

func TestFormat_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestOrchestrator(&echo{}).Format(ctx, Request{Code: scanner, Options: DefaultOptions()})
	assert.False(t, res.Success)
	assert.Equal(t, model.WorkflowFailed, res.Workflow.Status)
	assert.Contains(t, res.Workflow.Error, context.Canceled.Error())
}

// cancelAfter cancels the request once the named stage has succeeded.
type cancelAfter struct {
	slog.Handler
	stage  string
	cancel context.CancelFunc
}

func (h cancelAfter) Enabled(context.Context, slog.Level) bool { return true }

func (h cancelAfter) Handle(_ context.Context, rec slog.Record) error {
	if rec.Message != "stage succeeded" {
		return nil
	}
	rec.Attrs(func(a slog.Attr) bool {
		if a.Key == "stage" && a.Value.String() == h.stage {
			h.cancel()
		}
		return true
	})
	return nil
}

func TestFormat_CanceledDuringOptionalStage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := slog.New(cancelAfter{
		Handler: slog.NewTextHandler(io.Discard, nil),
		stage:   StageCompliance,
		cancel:  cancel,
	})

	res := newTestOrchestrator(&echo{}, WithLogger(logger)).Format(ctx, Request{Code: scanner, Options: DefaultOptions()})

	assert.False(t, res.Success)
	assert.Equal(t, model.WorkflowFailed, res.Workflow.Status)
	assert.Equal(t, scanner, res.TransformedCode)
	require.NotNil(t, res.Error)
	assert.Equal(t, StageParameterPreservation, res.Error.FailedStage)
	assert.Contains(t, res.Error.Message, context.Canceled.Error())

	rec, ok := res.Workflow.Stage(StageCompliance)
	require.True(t, ok)
	assert.Equal(t, model.StageSucceeded, rec.Status)
	for _, name := range []string{StageParameterPreservation, StageOptimization, StageDocumentation, StageValidation} {
		_, ok := res.Workflow.Stage(name)
		assert.False(t, ok, "%s ran after cancellation", name)
	}
}

func TestFormat_SourceTooLarge(t *testing.T) {
	var b strings.Builder
	b.WriteString(scanner)
	for b.Len() <= engine.DefaultMaxSourceRunes {
		b.WriteString("    # padding line for a long scanner body\n")
	}
	b.WriteString("    def tail_method(self):\n        return 1\n")
	code := b.String()

	res := newTestOrchestrator(engine.NewTransformer(&engine.StubModelClient{})).
		Format(context.Background(), Request{Code: code, Options: DefaultOptions()})

	assert.False(t, res.Success)
	assert.Equal(t, code, res.TransformedCode)
	assert.Equal(t, 0, res.Summary.ValidationScore)
	require.NotNil(t, res.Error)
	assert.Equal(t, StageGeneration, res.Error.FailedStage)
	assert.False(t, res.Error.Retryable)

	rec, ok := res.Workflow.Stage(StageGeneration)
	require.True(t, ok)
	assert.Equal(t, 1, rec.Attempts)
}

func TestFormat_CacheHit(t *testing.T) {
	c, err := cache.New(8)
	require.NoError(t, err)
	o := newTestOrchestrator(&echo{}, WithCache(c))

	first := o.Format(context.Background(), Request{Code: scanner, Options: DefaultOptions()})
	second := o.Format(context.Background(), Request{Code: scanner, Options: DefaultOptions()})

	require.True(t, first.Success)
	require.True(t, second.Success)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, first.TransformedCode, second.TransformedCode)

	rec, ok := second.Workflow.Stage(StageAnalysis)
	require.True(t, ok)
	assert.Equal(t, []string{"cache hit"}, rec.Notes)
	rec, ok = first.Workflow.Stage(StageAnalysis)
	require.True(t, ok)
	assert.Empty(t, rec.Notes)
}

func TestFormat_StatusIsMonotonic(t *testing.T) {
	for _, gen := range []Generator{&echo{}, panicky{}} {
		res := newTestOrchestrator(gen).Format(context.Background(), Request{Code: scanner, Options: DefaultOptions()})
		assert.True(t, res.Workflow.Status.Terminal())
		assert.NotNil(t, res.Workflow.EndedAt)
		assert.Error(t, res.Workflow.Transition(model.WorkflowInProgress))
		assert.Error(t, res.Workflow.Transition(model.WorkflowCompleted))
	}
}

func TestExecuteStage(t *testing.T) {
	o := newTestOrchestrator(&echo{})
	ctx := context.Background()

	t.Run("analysis", func(t *testing.T) {
		res, err := o.ExecuteStage(ctx, StageRequest{StageName: StageAnalysis, Code: scanner})
		require.NoError(t, err)
		report, ok := res.Output.(model.AnalysisReport)
		require.True(t, ok)
		assert.True(t, report.Has(model.FlagHasDeprecatedMethods))
		assert.Empty(t, res.Code)
	})

	t.Run("parameter extraction", func(t *testing.T) {
		res, err := o.ExecuteStage(ctx, StageRequest{StageName: StageParameterExtraction, Code: scanner})
		require.NoError(t, err)
		set, ok := res.Output.(*model.ParameterSet)
		require.True(t, ok)
		assert.Equal(t, []string{"price_min", "gap_div_atr_min"}, set.Names())
	})

	t.Run("compliance", func(t *testing.T) {
		res, err := o.ExecuteStage(ctx, StageRequest{StageName: StageCompliance, Code: scanner})
		require.NoError(t, err)
		assert.Contains(t, res.Code, "def run_scan(")
		assert.NotEmpty(t, res.Notes)
	})

	t.Run("generation", func(t *testing.T) {
		res, err := o.ExecuteStage(ctx, StageRequest{StageName: StageGeneration, Code: scanner})
		require.NoError(t, err)
		assert.Equal(t, scanner, res.Code)
	})

	t.Run("parameter preservation uses original code", func(t *testing.T) {
		res, err := o.ExecuteStage(ctx, StageRequest{
			StageName: StageParameterPreservation,
			Code:      "P = {\n    \"price_min\": 8.0,\n}\n",
			Context:   map[string]any{ContextOriginalCode: scanner},
		})
		require.NoError(t, err)
		assert.Contains(t, res.Code, `"gap_div_atr_min": 0.75`)
	})

	t.Run("validation", func(t *testing.T) {
		res, err := o.ExecuteStage(ctx, StageRequest{StageName: StageValidation, Code: scanner})
		require.NoError(t, err)
		report, ok := res.Output.(model.ComplianceReport)
		require.True(t, ok)
		assert.Equal(t, 0, report.Score)
	})

	t.Run("unknown stage", func(t *testing.T) {
		_, err := o.ExecuteStage(ctx, StageRequest{StageName: "lint", Code: scanner})
		assert.ErrorIs(t, err, ErrUnknownStage)
	})

	t.Run("failing stage", func(t *testing.T) {
		_, err := newTestOrchestrator(panicky{}).ExecuteStage(ctx, StageRequest{StageName: StageGeneration, Code: scanner})
		var se *model.StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, StageGeneration, se.StageName())
	})
}
