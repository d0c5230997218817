package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/yangwenmai/scanforge/internal/model"
	"github.com/yangwenmai/scanforge/internal/passes"
)

// Stage names, in pipeline order.
const (
	StageAnalysis               = "analysis"
	StageParameterExtraction    = "parameter_extraction"
	StageTemplateClassification = "template_classification"
	StageGeneration             = "generation"
	StageCompliance             = "compliance"
	StageParameterPreservation  = "parameter_preservation"
	StageOptimization           = "optimization"
	StageDocumentation          = "documentation"
	StageValidation             = "validation"
)

// Stages lists every stage in pipeline order.
var Stages = []string{
	StageAnalysis,
	StageParameterExtraction,
	StageTemplateClassification,
	StageGeneration,
	StageCompliance,
	StageParameterPreservation,
	StageOptimization,
	StageDocumentation,
	StageValidation,
}

// IsMandatory reports whether a failure of the stage fails the workflow.
func IsMandatory(stage string) bool {
	return stage == StageAnalysis || stage == StageGeneration || stage == StageCompliance
}

// outcome is what a stage hands back for its record.
type outcome struct {
	result   any
	notes    []string
	attempts int
}

type stageFunc func(ctx context.Context) (outcome, error)

// execute runs fn as one stage and builds its record. A panic inside fn is
// recovered into a stage failure. execute never touches the workflow.
func (o *Orchestrator) execute(ctx context.Context, name string, mandatory bool, fn stageFunc) (rec model.StageRecord, err error) {
	start := time.Now()
	rec = model.StageRecord{Name: name, Mandatory: mandatory, StartedAt: start.UTC(), Attempts: 1}

	var out outcome
	func() {
		defer func() {
			if p := recover(); p != nil {
				o.logger.Error("stage panicked", "stage", name, "panic", p, "stack", string(debug.Stack()))
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		if err = ctx.Err(); err == nil {
			out, err = fn(ctx)
		}
	}()

	rec.DurationMS = time.Since(start).Milliseconds()
	rec.Notes = out.notes
	if out.attempts > 0 {
		rec.Attempts = out.attempts
	}
	if err != nil {
		rec.Status = model.StageFailed
		rec.Error = err.Error()
		o.logger.Warn("stage failed", "stage", name, "mandatory", mandatory, "error", err)
		return rec, err
	}
	rec.Status = model.StageSucceeded
	rec.Result = out.result
	o.logger.Debug("stage succeeded", "stage", name, "duration", time.Since(start))
	return rec, nil
}

// ---------------------------------------------------------------------------
// Analysis and extraction
// ---------------------------------------------------------------------------

func (r *run) analyze(_ context.Context) (outcome, error) {
	r.analysis = r.o.analyzer.Analyze(r.source)
	var notes []string
	if r.source.Code == "" {
		notes = append(notes, model.ErrAnalysis.Error())
	}
	return outcome{result: r.analysis, notes: notes}, nil
}

func (r *run) extract(_ context.Context) (outcome, error) {
	r.params = r.o.extractor.Extract(r.source, nil)
	var notes []string
	if r.params.Len() == 0 {
		notes = append(notes, model.ErrExtraction.Error())
	}
	return outcome{result: r.params, notes: notes}, nil
}

// ---------------------------------------------------------------------------
// Classification
// ---------------------------------------------------------------------------

func (r *run) classify(_ context.Context) (outcome, error) {
	r.template = r.o.classifier.Classify(r.source, r.analysis)
	return outcome{result: r.template}, nil
}

// ---------------------------------------------------------------------------
// Generation
// ---------------------------------------------------------------------------

// generate calls the generator, retrying only retryable generation errors
// with a linear backoff.
func (r *run) generate(ctx context.Context) (outcome, error) {
	req := model.TransformationRequest{
		Source:   r.source,
		Kind:     r.opts.TransformationType,
		Analysis: r.analysis,
	}
	if r.template.Template != "" {
		tm := r.template
		req.Template = &tm
	}
	if r.opts.PreserveParameters {
		req.Parameters = r.params
	}

	for attempt := 1; ; attempt++ {
		art, err := r.o.generator.Transform(ctx, req)
		if err == nil {
			r.artifact = art
			return outcome{
				result:   map[string]any{"lines": model.CountLines(art.Code)},
				notes:    art.Transformations,
				attempts: attempt,
			}, nil
		}
		if !model.IsRetryable(err) || attempt >= r.o.attempts || ctx.Err() != nil {
			return outcome{attempts: attempt}, err
		}

		wait := r.o.backoff * time.Duration(attempt)
		r.o.logger.Warn("retrying generation", "workflow_id", r.wf.ID, "attempt", attempt, "backoff", wait, "error", err)
		select {
		case <-ctx.Done():
			return outcome{attempts: attempt}, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// ---------------------------------------------------------------------------
// Compliance and optional passes
// ---------------------------------------------------------------------------

func (r *run) enforce(_ context.Context) (outcome, error) {
	before := len(r.artifact.Transformations)
	r.artifact = r.o.enforcer.Enforce(r.artifact)
	notes := r.artifact.Transformations[before:]
	return outcome{result: map[string]any{"changes": len(notes)}, notes: notes}, nil
}

func (r *run) preserve(_ context.Context) (outcome, error) {
	code, res := passes.PreserveParameters(r.artifact.Code, r.params)
	r.preservation = &res
	var notes []string
	if len(res.Restored) > 0 {
		notes = append(notes, fmt.Sprintf("Restored %d parameters", len(res.Restored)))
		r.artifact = r.artifact.WithCode(code, notes...)
	}
	return outcome{result: res, notes: notes}, nil
}

func (r *run) optimize(_ context.Context) (outcome, error) {
	code, res := passes.Optimize(r.artifact.Code)
	r.optimization = res
	if res.Applied > 0 {
		r.artifact = r.artifact.WithCode(code, res.Notes...)
	}
	return outcome{result: res, notes: res.Notes}, nil
}

func (r *run) document(_ context.Context) (outcome, error) {
	var tm *model.TemplateMatch
	if r.template.Template != "" {
		tm = &r.template
	}
	code, changed := passes.Document(r.artifact.Code, passes.DocInfo{
		Template:   tm,
		Parameters: r.params,
		Checklist:  r.o.validator.Version(),
	})
	if !changed {
		return outcome{notes: []string{"module docstring already present"}}, nil
	}
	r.artifact = r.artifact.WithCode(code, "Added module docstring")
	return outcome{notes: []string{"Added module docstring"}}, nil
}

func (r *run) validate(_ context.Context) (outcome, error) {
	report := r.o.validator.Validate(r.artifact)
	r.compliance = &report
	r.artifact.Compliance = &report
	return outcome{result: report}, nil
}
