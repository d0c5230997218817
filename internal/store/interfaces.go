package store

import (
	"context"
)

// StatusCounts holds the number of runs per terminal status.
type StatusCounts struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// RunReader provides read access to workflow runs.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, f RunFilter) ([]RunSummary, error)
	CountByStatus(ctx context.Context) (StatusCounts, error)
}

// RunWriter provides write access to workflow runs.
type RunWriter interface {
	SaveRun(ctx context.Context, run Run) error
	DeleteRun(ctx context.Context, id string) error
}

// RunRepository combines all run operations for the API layer.
type RunRepository interface {
	RunReader
	RunWriter
}
