package runner

import (
	"time"

	"github.com/stellarlinkco/diag-eval/internal/evaluator"
)

// Status is the final outcome of one case execution.
type Status string

const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusError Status = "error"
)

// Assertion result keys in EvalReport.Assertions.
const (
	CheckSchema    = "schema"
	CheckEvidence  = "evidence"
	CheckForbidden = "forbidden"
	CheckTools     = "tools"
)

// Config defines per-run executor behavior.
type Config struct {
	CaseTimeout time.Duration // per-case wall clock budget
	Concurrency int           // parallel sweep width
	Serial      bool          // one case at a time
	SerialPause time.Duration // pause between cases in serial mode
}

// TurnResult is the outcome of one conversation turn.
type TurnResult struct {
	Turn      int      `json:"turn"`
	Prompt    string   `json:"prompt"`
	Response  string   `json:"response"`
	ToolCalls []string `json:"toolCalls,omitempty"`
	Issues    []string `json:"issues,omitempty"`
	Passed    bool     `json:"passed"`
}

// EvalReport is the immutable record of one case execution.
type EvalReport struct {
	CaseID   string `json:"caseId"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Mode     string `json:"mode"`

	Prompt       string   `json:"prompt"`
	Conversation []string `json:"conversation,omitempty"`

	ResponseText string         `json:"responseText"`
	ResponseKind string         `json:"responseKind,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	ToolCalls    []string       `json:"toolCalls,omitempty"`

	Assertions map[string]evaluator.Result `json:"assertions"`
	Rubric     *evaluator.RubricResult     `json:"rubric,omitempty"`

	Turns []TurnResult `json:"turns,omitempty"`

	Status     Status    `json:"status"`
	Err        string    `json:"error,omitempty"`
	DurationMs int64     `json:"durationMs"`
	Timestamp  time.Time `json:"timestamp"`
}

// CategoryCount tallies one category within a run.
type CategoryCount struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
}

// FailingCase is a compact summary of one non-passing case.
type FailingCase struct {
	CaseID string `json:"caseId"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// EvalSummary aggregates one run's reports. Derived, recomputed per run.
type EvalSummary struct {
	Total      int                      `json:"total"`
	Passed     int                      `json:"passed"`
	Failed     int                      `json:"failed"`
	Errored    int                      `json:"errored"`
	PassRate   float64                  `json:"passRate"`
	ByCategory map[string]CategoryCount `json:"byCategory"`
	Failing    []FailingCase            `json:"failing,omitempty"`
	DurationMs int64                    `json:"durationMs"`
}

// SingleRunResult is one orchestrated run: a mode applied once across the
// selected cases.
type SingleRunResult struct {
	RunID      string       `json:"runId"`
	Mode       string       `json:"mode"`
	Iteration  int          `json:"iteration"`
	Reports    []EvalReport `json:"reports"`
	Summary    EvalSummary  `json:"summary"`
	StartedAt  time.Time    `json:"startedAt"`
	DurationMs int64        `json:"durationMs"`
}
