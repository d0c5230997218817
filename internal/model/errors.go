package model

import (
	"errors"
	"time"
)

// ErrInvalidTransition is returned when a workflow status change would move
// backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid workflow transition")

// Conservative-default conditions. The stages that hit these degrade to empty or
// false results and record the condition as a note; they are never returned.
var (
	ErrAnalysis         = errors.New("analysis: malformed or empty source")
	ErrExtraction       = errors.New("extraction: no parameters found")
	ErrComplianceRepair = errors.New("compliance: no target class for method insertion")
	ErrValidation       = errors.New("validation: check failed")
)

// GenerationError reports a failure of the external text-generation service or
// an unusable response. It is the only error allowed to abort a workflow.
type GenerationError struct {
	Reason    string
	Retryable bool
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return "generation: " + e.Reason
	}
	return "generation: " + e.Reason + ": " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a GenerationError worth retrying.
func IsRetryable(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge) && ge.Retryable
}

// StageError wraps an error with the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageName returns the failing stage.
func (e *StageError) StageName() string {
	return e.Stage
}

// ErrorInfo holds structured failure information for a workflow.
type ErrorInfo struct {
	FailedStage string `json:"failed_stage"`
	Message     string `json:"message"`
	Retryable   bool   `json:"retryable"`
	FailedAt    string `json:"failed_at"`
}

// NewErrorInfo describes err, naming the stage when err carries one.
func NewErrorInfo(err error) ErrorInfo {
	stage := "unknown"
	var se *StageError
	if errors.As(err, &se) {
		stage = se.StageName()
	}
	return ErrorInfo{
		FailedStage: stage,
		Message:     err.Error(),
		Retryable:   IsRetryable(err),
		FailedAt:    time.Now().UTC().Format(time.RFC3339),
	}
}
