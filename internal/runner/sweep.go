package runner

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stellarlinkco/diag-eval/internal/evaluator"
	"github.com/stellarlinkco/diag-eval/internal/judge"
	"github.com/stellarlinkco/diag-eval/internal/registry"
)

// Sweep executes every case once and returns the reports in case order plus
// the run summary. The judge phase, when enabled, runs strictly after all
// executions complete.
func (r *Runner) Sweep(ctx context.Context, cases []registry.Case, prompts map[string]string) ([]EvalReport, EvalSummary, error) {
	start := time.Now()
	reports := make([]EvalReport, len(cases))

	if r.cfg.Serial {
		for i, c := range cases {
			if err := ctx.Err(); err != nil {
				return nil, EvalSummary{}, err
			}
			if i > 0 && r.cfg.SerialPause > 0 {
				if err := pause(ctx, r.cfg.SerialPause); err != nil {
					return nil, EvalSummary{}, err
				}
			}
			reports[i] = *r.RunCase(ctx, c, prompts[c.ID])
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.Concurrency)
		for i, c := range cases {
			i, c := i, c
			g.Go(func() error {
				reports[i] = *r.RunCase(gctx, c, prompts[c.ID])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, EvalSummary{}, err
		}
	}

	if r.judge != nil {
		r.reviewFailures(ctx, reports)
	}

	return reports, buildSummary(reports, time.Since(start)), nil
}

// reviewFailures sends judge-eligible reports for semantic review and applies
// the verdicts in place.
func (r *Runner) reviewFailures(ctx context.Context, reports []EvalReport) {
	var candidates []judge.Candidate
	byID := make(map[string]*EvalReport)

	for i := range reports {
		rep := &reports[i]
		if !EligibleForJudge(rep) {
			continue
		}
		candidates = append(candidates, judge.Candidate{
			ID:       rep.CaseID,
			Title:    rep.Title,
			Prompt:   rep.Prompt,
			Response: rep.ResponseText,
			Missing:  missingEvidence(rep),
		})
		byID[rep.CaseID] = rep
	}
	if len(candidates) == 0 {
		return
	}

	verdicts, err := r.judge.Review(ctx, candidates)
	if err != nil {
		r.logger.Warn("judge review incomplete", zap.Error(err))
	}
	for id, rep := range byID {
		if v, ok := verdicts[id]; ok {
			applyVerdict(rep, v)
		}
	}
}

// EligibleForJudge reports whether a case is worth semantic re-scoring:
// it failed, its structure checked out, but the evidence wording missed.
func EligibleForJudge(rep *EvalReport) bool {
	if rep == nil || rep.Status != StatusFail {
		return false
	}
	schema, ok := rep.Assertions[CheckSchema]
	if !ok || !schema.Passed {
		return false
	}
	evidence, ok := rep.Assertions[CheckEvidence]
	return ok && !evidence.Passed
}

// applyVerdict overwrites the evidence result with the judge's ruling.
// A failing verdict never changes status; a passing one flips the case to
// pass when evidence was the sole failure.
func applyVerdict(rep *EvalReport, v judge.Verdict) {
	details := map[string]any{"llmJudge": true}
	if len(v.Matched) > 0 {
		details["matched"] = v.Matched
	}
	if len(v.Missing) > 0 {
		details["missing"] = v.Missing
	}
	if v.Rationale != "" {
		details["rationale"] = v.Rationale
	}

	if !v.Passed {
		rep.Assertions[CheckEvidence] = evaluator.Result{
			Passed:  false,
			Message: "evidence missing after semantic review",
			Details: details,
		}
		return
	}

	rep.Assertions[CheckEvidence] = evaluator.Result{
		Passed:  true,
		Message: "evidence matched by semantic review",
		Details: details,
	}

	if evidenceWasSoleFailure(rep) {
		rep.Status = StatusPass
	}
}

func evidenceWasSoleFailure(rep *EvalReport) bool {
	if rep.Status != StatusFail || rep.Err != "" {
		return false
	}
	for key, res := range rep.Assertions {
		if key == CheckEvidence {
			continue
		}
		if !res.Passed {
			return false
		}
	}
	return rep.Rubric == nil || rep.Rubric.Passed
}

func missingEvidence(rep *EvalReport) []string {
	evidence, ok := rep.Assertions[CheckEvidence]
	if !ok {
		return nil
	}
	raw, ok := evidence.Details["missing"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func buildSummary(reports []EvalReport, elapsed time.Duration) EvalSummary {
	summary := EvalSummary{
		Total:      len(reports),
		ByCategory: make(map[string]CategoryCount),
		DurationMs: elapsed.Milliseconds(),
	}

	for _, rep := range reports {
		cc := summary.ByCategory[rep.Category]
		cc.Total++

		switch rep.Status {
		case StatusPass:
			summary.Passed++
			cc.Passed++
		case StatusError:
			summary.Errored++
			summary.Failing = append(summary.Failing, failingCase(rep))
		default:
			summary.Failed++
			summary.Failing = append(summary.Failing, failingCase(rep))
		}
		summary.ByCategory[rep.Category] = cc
	}

	if summary.Total > 0 {
		summary.PassRate = float64(summary.Passed) / float64(summary.Total)
	}
	return summary
}

func failingCase(rep EvalReport) FailingCase {
	reason := rep.Err
	if reason == "" {
		for _, key := range []string{CheckSchema, CheckEvidence, CheckForbidden, CheckTools} {
			if res, ok := rep.Assertions[key]; ok && !res.Passed {
				reason = res.Message
				break
			}
		}
	}
	if reason == "" && rep.Rubric != nil && !rep.Rubric.Passed {
		reason = "rubric score below minimum"
	}
	return FailingCase{CaseID: rep.CaseID, Status: rep.Status, Reason: reason}
}

func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
