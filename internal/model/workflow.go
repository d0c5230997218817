package model

import (
	"fmt"
	"time"
)

// WorkflowStatus is the lifecycle state of one formatting request.
type WorkflowStatus string

// Workflow status constants
const (
	WorkflowPending    WorkflowStatus = "pending"
	WorkflowInProgress WorkflowStatus = "in_progress"
	WorkflowCompleted  WorkflowStatus = "completed"
	WorkflowFailed     WorkflowStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s WorkflowStatus) Terminal() bool {
	return s == WorkflowCompleted || s == WorkflowFailed
}

// StageStatus is the outcome of a single stage.
type StageStatus string

// Stage status constants
const (
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// StageRecord is one entry in a workflow's ordered stage log.
type StageRecord struct {
	Name       string      `json:"name"`
	Status     StageStatus `json:"status"`
	Mandatory  bool        `json:"mandatory"`
	Attempts   int         `json:"attempts,omitempty"`
	Result     any         `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
	Notes      []string    `json:"notes,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	DurationMS int64       `json:"duration_ms"`
}

// Workflow tracks one request through the pipeline. It is owned by the
// orchestrator invocation that created it and is never shared.
type Workflow struct {
	ID        string         `json:"id"`
	Status    WorkflowStatus `json:"status"`
	Stages    []StageRecord  `json:"stages"`
	Error     string         `json:"error,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
}

// NewWorkflow creates a workflow in the pending state.
func NewWorkflow(id string) *Workflow {
	return &Workflow{
		ID:        id,
		Status:    WorkflowPending,
		Stages:    []StageRecord{},
		StartedAt: time.Now().UTC(),
	}
}

// ValidateTransition checks that moving from the current status to next is a
// forward step: pending to in_progress, then in_progress to completed or failed.
func (w *Workflow) ValidateTransition(next WorkflowStatus) error {
	switch {
	case w.Status == WorkflowPending && next == WorkflowInProgress:
		return nil
	case w.Status == WorkflowInProgress && (next == WorkflowCompleted || next == WorkflowFailed):
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, w.Status, next)
}

// Transition moves the workflow to next, stamping EndedAt on terminal states.
func (w *Workflow) Transition(next WorkflowStatus) error {
	if err := w.ValidateTransition(next); err != nil {
		return err
	}
	w.Status = next
	if next.Terminal() {
		now := time.Now().UTC()
		w.EndedAt = &now
	}
	return nil
}

// Fail records msg and moves the workflow to failed.
func (w *Workflow) Fail(msg string) error {
	if err := w.Transition(WorkflowFailed); err != nil {
		return err
	}
	w.Error = msg
	return nil
}

// Record appends a stage outcome. Records are never rewritten.
func (w *Workflow) Record(rec StageRecord) {
	w.Stages = append(w.Stages, rec)
}

// Stage returns the last record with the given name.
func (w *Workflow) Stage(name string) (StageRecord, bool) {
	for i := len(w.Stages) - 1; i >= 0; i-- {
		if w.Stages[i].Name == name {
			return w.Stages[i], true
		}
	}
	return StageRecord{}, false
}

// FailedStage returns the first mandatory stage that failed, if any.
func (w *Workflow) FailedStage() (StageRecord, bool) {
	for _, s := range w.Stages {
		if s.Mandatory && s.Status == StageFailed {
			return s, true
		}
	}
	return StageRecord{}, false
}

// Duration returns the wall time between start and end, or zero while running.
func (w *Workflow) Duration() time.Duration {
	if w.EndedAt == nil {
		return 0
	}
	return w.EndedAt.Sub(w.StartedAt)
}
