package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/yangwenmai/scanforge/internal/model"
)

// ErrUnknownStage is returned by ExecuteStage for a name not in Stages.
var ErrUnknownStage = errors.New("unknown stage")

// Context keys understood by ExecuteStage.
const (
	ContextTransformationType = "transformation_type"
	ContextOriginalCode       = "original_code"
)

// StageRequest runs one stage in isolation.
type StageRequest struct {
	StageName string         `json:"stageName"`
	Code      string         `json:"code"`
	Context   map[string]any `json:"context,omitempty"`
}

// StageResult is the outcome of ExecuteStage.
type StageResult struct {
	Stage      string   `json:"stage"`
	Code       string   `json:"code,omitempty"`
	Output     any      `json:"output,omitempty"`
	Notes      []string `json:"notes,omitempty"`
	DurationMS int64    `json:"durationMs"`
}

// ExecuteStage runs a single named stage against code, for diagnostics.
// Stages that work on generated output treat Code as that output; their
// inputs derived from the scanner come from Context["original_code"] when
// set and from Code otherwise. No workflow is created.
func (o *Orchestrator) ExecuteStage(ctx context.Context, req StageRequest) (*StageResult, error) {
	st, ok := o.stageTable(req)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, req.StageName)
	}

	rec, err := o.execute(ctx, req.StageName, IsMandatory(req.StageName), st.fn)
	if err != nil {
		return nil, &model.StageError{Stage: req.StageName, Err: err}
	}
	res := &StageResult{
		Stage:      req.StageName,
		Output:     rec.Result,
		Notes:      rec.Notes,
		DurationMS: rec.DurationMS,
	}
	if producesCode(req.StageName) {
		res.Code = st.r.artifact.Code
	}
	return res, nil
}

type isolated struct {
	r  *run
	fn stageFunc
}

func (o *Orchestrator) stageTable(req StageRequest) (isolated, bool) {
	original := req.Code
	if s, ok := req.Context[ContextOriginalCode].(string); ok && s != "" {
		original = s
	}
	opts := DefaultOptions()
	if s, ok := req.Context[ContextTransformationType].(string); ok && s != "" {
		opts.TransformationType = model.TransformationKind(s)
	}

	r := &run{
		o:        o,
		opts:     opts,
		wf:       model.NewWorkflow(o.newID()),
		source:   model.NewSourceArtifact(original, ""),
		artifact: model.FormattedArtifact{Code: req.Code, Transformations: []string{}},
	}
	// prepare runs the scanner-side stages a downstream stage depends on.
	prepare := func(ctx context.Context, classify bool) {
		_, _ = r.analyze(ctx)
		_, _ = r.extract(ctx)
		if classify {
			_, _ = r.classify(ctx)
		}
	}

	var fn stageFunc
	switch req.StageName {
	case StageAnalysis:
		r.source = model.NewSourceArtifact(req.Code, "")
		fn = r.analyze
	case StageParameterExtraction:
		r.source = model.NewSourceArtifact(req.Code, "")
		fn = r.extract
	case StageTemplateClassification:
		r.source = model.NewSourceArtifact(req.Code, "")
		fn = func(ctx context.Context) (outcome, error) {
			_, _ = r.analyze(ctx)
			return r.classify(ctx)
		}
	case StageGeneration:
		r.source = model.NewSourceArtifact(req.Code, "")
		fn = func(ctx context.Context) (outcome, error) {
			prepare(ctx, true)
			return r.generate(ctx)
		}
	case StageCompliance:
		fn = r.enforce
	case StageParameterPreservation:
		fn = func(ctx context.Context) (outcome, error) {
			prepare(ctx, false)
			return r.preserve(ctx)
		}
	case StageOptimization:
		fn = r.optimize
	case StageDocumentation:
		fn = func(ctx context.Context) (outcome, error) {
			prepare(ctx, true)
			return r.document(ctx)
		}
	case StageValidation:
		fn = r.validate
	default:
		return isolated{}, false
	}
	return isolated{r: r, fn: fn}, true
}

func producesCode(stage string) bool {
	switch stage {
	case StageAnalysis, StageParameterExtraction, StageTemplateClassification, StageValidation:
		return false
	}
	return true
}
