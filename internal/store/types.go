package store

import (
	"context"
	"time"

	"github.com/stellarlinkco/diag-eval/internal/runner"
)

// RunWriter persists orchestrated runs and their per-case reports.
type RunWriter interface {
	SaveRun(ctx context.Context, run *runner.SingleRunResult) error
}

// RunReader defines read access to runs and reports.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*runner.SingleRunResult, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error)
	GetReports(ctx context.Context, runID string) ([]runner.EvalReport, error)
	GetReport(ctx context.Context, runID string, caseID string) (*runner.EvalReport, error)
	// LoadRuns materializes full runs for aggregation.
	LoadRuns(ctx context.Context, filter RunFilter) ([]runner.SingleRunResult, error)
}

// Store defines persistence for runs and reports.
type Store interface {
	RunWriter
	RunReader
	Close() error
}

// RunRecord is one row of the run listing.
type RunRecord struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	Iteration  int       `json:"iteration"`
	StartedAt  time.Time `json:"startedAt"`
	Total      int       `json:"total"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Errored    int       `json:"errored"`
	PassRate   float64   `json:"passRate"`
	DurationMs int64     `json:"durationMs"`
}

// RunFilter filters run listings.
type RunFilter struct {
	Mode  string
	Since time.Time
	Until time.Time
	Limit int
}
