// Package aggregate reconciles reports across runs. Everything here is a
// pure recomputation from the complete run list; nothing is cached or
// updated incrementally.
package aggregate

import (
	"sort"

	"github.com/stellarlinkco/diag-eval/internal/runner"
)

// Consistency classifies a case's behavior across runs.
type Consistency string

const (
	StablePass Consistency = "stable-pass"
	StableFail Consistency = "stable-fail"
	Flaky      Consistency = "flaky"
)

const defaultProblemCutoff = 0.5

// Classify derives the consistency tag from a per-run status list. Errored
// runs count as failures.
func Classify(statuses []runner.Status) Consistency {
	allPass := true
	allFail := true
	for _, s := range statuses {
		if s == runner.StatusPass {
			allFail = false
		} else {
			allPass = false
		}
	}
	switch {
	case allPass:
		return StablePass
	case allFail:
		return StableFail
	default:
		return Flaky
	}
}

// RunOutcome is one case's result in one run.
type RunOutcome struct {
	RunID      string        `json:"runId"`
	Mode       string        `json:"mode"`
	Status     runner.Status `json:"status"`
	DurationMs int64         `json:"durationMs"`
	Err        string        `json:"error,omitempty"`
}

// CaseAnalysis summarizes one case across all runs.
type CaseAnalysis struct {
	CaseID      string       `json:"caseId"`
	Title       string       `json:"title"`
	Category    string       `json:"category"`
	Outcomes    []RunOutcome `json:"outcomes"`
	Consistency Consistency  `json:"consistency"`
	PassRate    float64      `json:"passRate"`
}

// ModeStats summarizes all runs of one mode.
type ModeStats struct {
	Mode          string  `json:"mode"`
	Runs          int     `json:"runs"`
	Total         int     `json:"total"`
	Passed        int     `json:"passed"`
	PassRate      float64 `json:"passRate"`
	AvgDurationMs int64   `json:"avgDurationMs"`
}

// CategoryStats summarizes one category across all runs, naming the cases
// whose pass rate fell below the cutoff.
type CategoryStats struct {
	Category    string   `json:"category"`
	Cases       int      `json:"cases"`
	PassRate    float64  `json:"passRate"`
	Problematic []string `json:"problematic,omitempty"`
}

// Analysis is the full cross-run aggregation.
type Analysis struct {
	Runs       int                      `json:"runs"`
	Cases      []CaseAnalysis           `json:"cases"`
	Modes      map[string]ModeStats     `json:"modes"`
	Categories map[string]CategoryStats `json:"categories"`
}

// Build recomputes the analysis from scratch.
func Build(runs []runner.SingleRunResult, problemCutoff float64) *Analysis {
	if problemCutoff <= 0 || problemCutoff > 1 {
		problemCutoff = defaultProblemCutoff
	}

	out := &Analysis{
		Runs:       len(runs),
		Modes:      make(map[string]ModeStats),
		Categories: make(map[string]CategoryStats),
	}

	type caseAccum struct {
		analysis CaseAnalysis
		passed   int
	}
	byCase := make(map[string]*caseAccum)
	var caseOrder []string

	for _, run := range runs {
		ms := out.Modes[run.Mode]
		ms.Mode = run.Mode
		ms.Runs++
		ms.Total += run.Summary.Total
		ms.Passed += run.Summary.Passed
		ms.AvgDurationMs += run.DurationMs
		out.Modes[run.Mode] = ms

		for _, rep := range run.Reports {
			acc, ok := byCase[rep.CaseID]
			if !ok {
				acc = &caseAccum{analysis: CaseAnalysis{
					CaseID:   rep.CaseID,
					Title:    rep.Title,
					Category: rep.Category,
				}}
				byCase[rep.CaseID] = acc
				caseOrder = append(caseOrder, rep.CaseID)
			}
			acc.analysis.Outcomes = append(acc.analysis.Outcomes, RunOutcome{
				RunID:      run.RunID,
				Mode:       run.Mode,
				Status:     rep.Status,
				DurationMs: rep.DurationMs,
				Err:        rep.Err,
			})
			if rep.Status == runner.StatusPass {
				acc.passed++
			}
		}
	}

	for mode, ms := range out.Modes {
		if ms.Total > 0 {
			ms.PassRate = float64(ms.Passed) / float64(ms.Total)
		}
		if ms.Runs > 0 {
			ms.AvgDurationMs /= int64(ms.Runs)
		}
		out.Modes[mode] = ms
	}

	sort.Strings(caseOrder)
	type catAccum struct {
		total       int
		passed      int
		cases       int
		problematic []string
	}
	byCategory := make(map[string]*catAccum)

	for _, id := range caseOrder {
		acc := byCase[id]
		ca := acc.analysis

		statuses := make([]runner.Status, 0, len(ca.Outcomes))
		for _, o := range ca.Outcomes {
			statuses = append(statuses, o.Status)
		}
		ca.Consistency = Classify(statuses)
		if len(ca.Outcomes) > 0 {
			ca.PassRate = float64(acc.passed) / float64(len(ca.Outcomes))
		}
		out.Cases = append(out.Cases, ca)

		cat, ok := byCategory[ca.Category]
		if !ok {
			cat = &catAccum{}
			byCategory[ca.Category] = cat
		}
		cat.cases++
		cat.total += len(ca.Outcomes)
		cat.passed += acc.passed
		if ca.PassRate < problemCutoff {
			cat.problematic = append(cat.problematic, ca.CaseID)
		}
	}

	for name, cat := range byCategory {
		cs := CategoryStats{
			Category:    name,
			Cases:       cat.cases,
			Problematic: cat.problematic,
		}
		if cat.total > 0 {
			cs.PassRate = float64(cat.passed) / float64(cat.total)
		}
		out.Categories[name] = cs
	}

	return out
}
