package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/yangwenmai/scanforge/internal/model"
	"github.com/yangwenmai/scanforge/internal/orchestrator"
	"github.com/yangwenmai/scanforge/internal/store"
)

// ---------------------------------------------------------------------------
// POST /api/format
// ---------------------------------------------------------------------------

type formatRequest struct {
	Code     string                `json:"code"`
	Filename string                `json:"filename"`
	Options  *orchestrator.Options `json:"options"`
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	// Options missing from the body keep their defaults.
	opts := orchestrator.DefaultOptions()
	req := formatRequest{Options: &opts}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, bodyStatus(err), "invalid JSON body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	if req.Options == nil {
		opts = orchestrator.DefaultOptions()
	} else {
		opts = *req.Options
	}
	if opts.TransformationType != "" && !model.ValidTransformationKind(opts.TransformationType) {
		writeError(w, http.StatusBadRequest, "unknown transformationType")
		return
	}

	res := s.formatter.Format(r.Context(), orchestrator.Request{
		Code:     req.Code,
		Filename: req.Filename,
		Options:  opts,
	})

	if err := s.store.SaveRun(r.Context(), runFromResult(req.Filename, res)); err != nil {
		s.logger.Error("save run failed", "workflow_id", res.Workflow.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, res)
}

// runFromResult converts a finished workflow into its history row.
func runFromResult(filename string, res *orchestrator.Result) store.Run {
	run := store.Run{
		RunSummary: store.RunSummary{
			ID:               res.Workflow.ID,
			Filename:         filename,
			Status:           res.Workflow.Status,
			Success:          res.Success,
			Score:            res.Summary.ValidationScore,
			OriginalLines:    res.Summary.OriginalLines,
			TransformedLines: res.Summary.TransformedLines,
			Error:            res.Workflow.Error,
		},
		Code:     res.TransformedCode,
		Workflow: res.Workflow,
	}
	if res.Template != nil {
		run.Template = string(res.Template.Template)
	}
	return run
}

// ---------------------------------------------------------------------------
// POST /api/stages/{name}
// ---------------------------------------------------------------------------

type stageRequest struct {
	Code    string         `json:"code"`
	Context map[string]any `json:"context"`
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, bodyStatus(err), "invalid JSON body")
		return
	}

	res, err := s.formatter.ExecuteStage(r.Context(), orchestrator.StageRequest{
		StageName: r.PathValue("name"),
		Code:      req.Code,
		Context:   req.Context,
	})
	var se *model.StageError
	switch {
	case errors.Is(err, orchestrator.ErrUnknownStage):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &se):
		status := http.StatusUnprocessableEntity
		if model.IsRetryable(err) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "stage failed")
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// ---------------------------------------------------------------------------
// GET /api/workflows
// ---------------------------------------------------------------------------

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{Template: q.Get("template")}
	for _, st := range splitComma(q.Get("status")) {
		filter.Status = append(filter.Status, model.WorkflowStatus(st))
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list workflows")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// ---------------------------------------------------------------------------
// GET|DELETE /api/workflows/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get workflow")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteRun(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete workflow")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": r.PathValue("id")})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountByStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count workflows")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// ---------------------------------------------------------------------------
// Registries
// ---------------------------------------------------------------------------

type templateInfo struct {
	ID             model.TemplateID `json:"id"`
	Description    string           `json:"description"`
	MaxScore       float64          `json:"maxScore"`
	ComplexDefault bool             `json:"complexDefault,omitempty"`
}

func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	out := make([]templateInfo, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, templateInfo{
			ID:             t.ID,
			Description:    t.Description,
			MaxScore:       t.MaxScore(),
			ComplexDefault: t.ComplexDefault,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type checkInfo struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

func (s *Server) handleChecklist(w http.ResponseWriter, _ *http.Request) {
	checks := make([]checkInfo, 0, len(s.checklist))
	for _, c := range s.checklist {
		checks = append(checks, checkInfo{Name: c.Name, Description: c.Description, Recommendation: c.Recommendation})
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": s.version, "checks": checks})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// bodyStatus maps a decode error to 413 when the body limit was hit.
func bodyStatus(err error) int {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
