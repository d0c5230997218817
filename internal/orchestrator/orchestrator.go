// Package orchestrator sequences the pipeline stages into one workflow per
// request and exposes the formatting entry point.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yangwenmai/scanforge/internal/analyzer"
	"github.com/yangwenmai/scanforge/internal/cache"
	"github.com/yangwenmai/scanforge/internal/classifier"
	"github.com/yangwenmai/scanforge/internal/enforcer"
	"github.com/yangwenmai/scanforge/internal/model"
	"github.com/yangwenmai/scanforge/internal/params"
	"github.com/yangwenmai/scanforge/internal/passes"
	"github.com/yangwenmai/scanforge/internal/validator"
)

// Generator is the generative stage.
type Generator interface {
	Transform(ctx context.Context, req model.TransformationRequest) (model.FormattedArtifact, error)
}

// Options are the per-request switches of the entry point.
type Options struct {
	TransformationType  model.TransformationKind `json:"transformationType"`
	PreserveParameters  bool                     `json:"preserveParameters"`
	AddDocumentation    bool                     `json:"addDocumentation"`
	OptimizePerformance bool                     `json:"optimizePerformance"`
	ValidateOutput      bool                     `json:"validateOutput"`
}

// DefaultOptions enables every optional stage.
func DefaultOptions() Options {
	return Options{
		TransformationType:  model.TransformV31Standardize,
		PreserveParameters:  true,
		AddDocumentation:    true,
		OptimizePerformance: true,
		ValidateOutput:      true,
	}
}

// Request is the input of Format.
type Request struct {
	Code     string  `json:"code"`
	Filename string  `json:"filename,omitempty"`
	Options  Options `json:"options"`
}

// Summary condenses a finished workflow.
type Summary struct {
	OriginalLines        int      `json:"originalLines"`
	TransformedLines     int      `json:"transformedLines"`
	ParametersPreserved  int      `json:"parametersPreserved"`
	ValidationScore      int      `json:"validationScore"`
	OptimizationsApplied int      `json:"optimizationsApplied"`
	AgentsUsed           []string `json:"agentsUsed"`
}

// Result is the output of Format. TransformedCode is the original code
// whenever Success is false.
type Result struct {
	Success         bool                    `json:"success"`
	TransformedCode string                  `json:"transformedCode"`
	Workflow        *model.Workflow         `json:"workflow"`
	Summary         Summary                 `json:"summary"`
	Template        *model.TemplateMatch    `json:"template,omitempty"`
	Compliance      *model.ComplianceReport `json:"compliance,omitempty"`
	Error           *model.ErrorInfo        `json:"error,omitempty"`
}

// Orchestrator holds configuration and stateless stage components only; all
// per-request state lives in the workflow run it creates.
type Orchestrator struct {
	analyzer   *analyzer.Analyzer
	extractor  *params.Extractor
	classifier *classifier.Classifier
	generator  Generator
	enforcer   *enforcer.Enforcer
	validator  *validator.Validator
	cache      *cache.AnalysisCache
	attempts   int
	backoff    time.Duration
	newID      func() string
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache memoizes analysis and extraction.
func WithCache(c *cache.AnalysisCache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithRetry sets how often a retryable generation failure is attempted and
// the base of the linear backoff between attempts.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(o *Orchestrator) {
		if attempts > 0 {
			o.attempts = attempts
		}
		if backoff >= 0 {
			o.backoff = backoff
		}
	}
}

// WithClassifier replaces the template classifier.
func WithClassifier(c *classifier.Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

// WithValidator replaces the validator.
func WithValidator(v *validator.Validator) Option {
	return func(o *Orchestrator) { o.validator = v }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithIDGenerator overrides workflow ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

// New creates an Orchestrator around a generator.
func New(gen Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		analyzer:   analyzer.New(),
		extractor:  params.New(),
		classifier: classifier.New(),
		generator:  gen,
		enforcer:   enforcer.New(),
		validator:  validator.New(),
		attempts:   2,
		backoff:    2 * time.Second,
		newID:      func() string { return uuid.New().String() },
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Format runs the whole pipeline for one scanner. It always returns a
// result; a failed mandatory stage yields Success false and the original code.
func (o *Orchestrator) Format(ctx context.Context, req Request) *Result {
	r := &run{
		o:      o,
		opts:   req.Options,
		wf:     model.NewWorkflow(o.newID()),
		source: model.NewSourceArtifact(req.Code, req.Filename),
	}
	_ = r.wf.Transition(model.WorkflowInProgress)
	o.logger.Info("workflow started", "workflow_id", r.wf.ID, "lines", r.source.LineCount())

	if err := r.pipeline(ctx); err != nil {
		_ = r.wf.Fail(err.Error())
		o.logger.Warn("workflow failed", "workflow_id", r.wf.ID, "error", err)
		return r.failed(err)
	}

	_ = r.wf.Transition(model.WorkflowCompleted)
	o.logger.Info("workflow completed", "workflow_id", r.wf.ID,
		"score", r.score(), "duration", r.wf.Duration())
	return r.completed()
}

// run is the state of one Format call.
type run struct {
	o      *Orchestrator
	opts   Options
	wf     *model.Workflow
	source model.SourceArtifact

	analysis     model.AnalysisReport
	params       *model.ParameterSet
	template     model.TemplateMatch
	artifact     model.FormattedArtifact
	preservation *passes.Preservation
	optimization passes.Optimization
	compliance   *model.ComplianceReport
}

// pipeline runs every stage in order and returns the first fatal error.
func (r *run) pipeline(ctx context.Context) error {
	if err := r.analyzeAndExtract(ctx); err != nil {
		return err
	}

	steps := []struct {
		name      string
		mandatory bool
		enabled   bool
		fn        stageFunc
	}{
		{StageTemplateClassification, false, true, r.classify},
		{StageGeneration, true, true, r.generate},
		{StageCompliance, true, true, r.enforce},
		{StageParameterPreservation, false, r.opts.PreserveParameters, r.preserve},
		{StageOptimization, false, r.opts.OptimizePerformance, r.optimize},
		{StageDocumentation, false, r.opts.AddDocumentation, r.document},
		{StageValidation, false, r.opts.ValidateOutput, r.validate},
	}
	for _, s := range steps {
		// A canceled request is abandoned whichever stage it reaches.
		if err := ctx.Err(); err != nil {
			return &model.StageError{Stage: s.name, Err: err}
		}
		if !s.enabled {
			r.wf.Record(skipped(s.name))
			continue
		}
		rec, err := r.o.execute(ctx, s.name, s.mandatory, s.fn)
		if fatal := r.record(rec, err); fatal != nil {
			return fatal
		}
		if err != nil && ctx.Err() != nil {
			return &model.StageError{Stage: s.name, Err: err}
		}
	}
	return nil
}

// analyzeAndExtract runs the two leaf stages concurrently; they share no
// state. Results are memoized by content.
func (r *run) analyzeAndExtract(ctx context.Context) error {
	if e, ok := r.o.cache.Get(r.source.Code); ok {
		r.analysis, r.params = e.Analysis, e.Parameters
		now := time.Now().UTC()
		for _, name := range []string{StageAnalysis, StageParameterExtraction} {
			r.wf.Record(model.StageRecord{
				Name:      name,
				Status:    model.StageSucceeded,
				Mandatory: name == StageAnalysis,
				Attempts:  1,
				Notes:     []string{"cache hit"},
				StartedAt: now,
			})
		}
		return nil
	}

	var (
		analysisRec, extractRec model.StageRecord
		analysisErr, extractErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		analysisRec, analysisErr = r.o.execute(gctx, StageAnalysis, true, r.analyze)
		return analysisErr
	})
	g.Go(func() error {
		extractRec, extractErr = r.o.execute(gctx, StageParameterExtraction, false, r.extract)
		return nil
	})
	_ = g.Wait()

	fatal := r.record(analysisRec, analysisErr)
	_ = r.record(extractRec, extractErr)
	if fatal != nil {
		return fatal
	}
	if r.params == nil {
		r.params = model.NewParameterSet()
	}

	if analysisErr == nil && extractErr == nil {
		r.o.cache.Add(r.source.Code, cache.Entry{Analysis: r.analysis, Parameters: r.params})
	}
	return nil
}

// record appends rec to the workflow and turns a mandatory failure into a
// StageError.
func (r *run) record(rec model.StageRecord, err error) error {
	r.wf.Record(rec)
	if err != nil && rec.Mandatory {
		return &model.StageError{Stage: rec.Name, Err: err}
	}
	return nil
}

func skipped(name string) model.StageRecord {
	return model.StageRecord{Name: name, Status: model.StageSkipped, StartedAt: time.Now().UTC()}
}

func (r *run) score() int {
	if r.compliance == nil {
		return 0
	}
	return r.compliance.Score
}

func (r *run) agents() []string {
	out := []string{}
	for _, s := range r.wf.Stages {
		if s.Status == model.StageSucceeded {
			out = append(out, s.Name)
		}
	}
	return out
}

func (r *run) failed(err error) *Result {
	lines := r.source.LineCount()
	info := model.NewErrorInfo(err)
	return &Result{
		Error:           &info,
		Success:         false,
		TransformedCode: r.source.Code,
		Workflow:        r.wf,
		Summary: Summary{
			OriginalLines:    lines,
			TransformedLines: lines,
			AgentsUsed:       r.agents(),
		},
	}
}

func (r *run) completed() *Result {
	res := &Result{
		Success:         true,
		TransformedCode: r.artifact.Code,
		Workflow:        r.wf,
		Summary: Summary{
			OriginalLines:        r.source.LineCount(),
			TransformedLines:     model.CountLines(r.artifact.Code),
			ValidationScore:      r.score(),
			OptimizationsApplied: r.optimization.Applied,
			AgentsUsed:           r.agents(),
		},
		Compliance: r.compliance,
	}
	if r.preservation != nil {
		res.Summary.ParametersPreserved = len(r.preservation.Preserved)
	}
	if r.template.Template != "" {
		tm := r.template
		res.Template = &tm
	}
	return res
}

// String renders a one-line status for logs and the CLI.
func (res *Result) String() string {
	return fmt.Sprintf("workflow %s %s: score %d, %d -> %d lines",
		res.Workflow.ID, res.Workflow.Status, res.Summary.ValidationScore,
		res.Summary.OriginalLines, res.Summary.TransformedLines)
}
