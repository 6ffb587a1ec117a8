package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stellarlinkco/diag-eval/internal/config"
	"github.com/stellarlinkco/diag-eval/internal/evaluator"
	"github.com/stellarlinkco/diag-eval/internal/runner"
)

func newMemoryStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func sampleRun(id, mode string, iteration int) *runner.SingleRunResult {
	started := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	return &runner.SingleRunResult{
		RunID:     id,
		Mode:      mode,
		Iteration: iteration,
		StartedAt: started,
		Reports: []runner.EvalReport{
			{
				CaseID:   "printer-offline",
				Title:    "Printer offline",
				Category: "printers",
				Mode:     mode,
				Status:   runner.StatusPass,
				Assertions: map[string]evaluator.Result{
					runner.CheckSchema: {Passed: true, Message: "ok"},
				},
				Timestamp: started,
			},
			{
				CaseID:    "wifi-deauth",
				Title:     "Wi-Fi deauth storm",
				Category:  "wifi",
				Mode:      mode,
				Status:    runner.StatusFail,
				Err:       "missing evidence: deauthentication",
				Timestamp: started.Add(time.Second),
			},
		},
		Summary: runner.EvalSummary{
			Total:    2,
			Passed:   1,
			Failed:   1,
			PassRate: 0.5,
			ByCategory: map[string]runner.CategoryCount{
				"printers": {Total: 1, Passed: 1},
				"wifi":     {Total: 1},
			},
		},
		DurationMs: 1200,
	}
}

func TestSaveAndGetRun(t *testing.T) {
	st := newMemoryStore(t)
	ctx := context.Background()

	if err := st.SaveRun(ctx, sampleRun("run-1", "fixtures", 1)); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	run, err := st.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Mode != "fixtures" || run.Iteration != 1 {
		t.Errorf("run = %+v", run)
	}
	if run.Summary.Total != 2 || run.Summary.PassRate != 0.5 {
		t.Errorf("summary = %+v", run.Summary)
	}
	if len(run.Reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(run.Reports))
	}
	if run.Reports[0].CaseID != "printer-offline" {
		t.Errorf("report order = %s, %s", run.Reports[0].CaseID, run.Reports[1].CaseID)
	}
	if !run.Reports[0].Assertions[runner.CheckSchema].Passed {
		t.Error("assertion result lost in round trip")
	}
}

func TestGetReportByKey(t *testing.T) {
	st := newMemoryStore(t)
	ctx := context.Background()

	if err := st.SaveRun(ctx, sampleRun("run-1", "fixtures", 1)); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	rep, err := st.GetReport(ctx, "run-1", "wifi-deauth")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if rep.Status != runner.StatusFail || rep.Err == "" {
		t.Errorf("report = %+v", rep)
	}

	if _, err := st.GetReport(ctx, "run-1", "no-such-case"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("missing report err = %v, want sql.ErrNoRows", err)
	}
}

func TestDuplicateReportKeyRejected(t *testing.T) {
	st := newMemoryStore(t)
	ctx := context.Background()

	run := sampleRun("run-1", "fixtures", 1)
	run.Reports = append(run.Reports, run.Reports[0])
	if err := st.SaveRun(ctx, run); err == nil {
		t.Fatal("expected duplicate (case_id, run_id) to fail the transaction")
	}

	// Transaction must roll back entirely.
	if _, err := st.GetRun(ctx, "run-1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("run persisted despite failed tx: %v", err)
	}
}

func TestListRunsFilter(t *testing.T) {
	st := newMemoryStore(t)
	ctx := context.Background()

	a := sampleRun("run-1", "fixtures", 1)
	b := sampleRun("run-2", "live", 1)
	b.StartedAt = a.StartedAt.Add(time.Minute)
	for _, run := range []*runner.SingleRunResult{a, b} {
		if err := st.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun(%s): %v", run.RunID, err)
		}
	}

	all, err := st.ListRuns(ctx, RunFilter{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(all) != 2 || all[0].ID != "run-2" {
		t.Errorf("listing = %+v, want newest first", all)
	}

	live, err := st.ListRuns(ctx, RunFilter{Mode: "live"})
	if err != nil {
		t.Fatalf("ListRuns(live): %v", err)
	}
	if len(live) != 1 || live[0].ID != "run-2" {
		t.Errorf("live listing = %+v", live)
	}
}

func TestLoadRuns(t *testing.T) {
	st := newMemoryStore(t)
	ctx := context.Background()

	for i, id := range []string{"run-1", "run-2"} {
		run := sampleRun(id, "fixtures", i+1)
		run.StartedAt = run.StartedAt.Add(time.Duration(i) * time.Minute)
		if err := st.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	runs, err := st.LoadRuns(ctx, RunFilter{})
	if err != nil {
		t.Fatalf("LoadRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs", len(runs))
	}
	for _, run := range runs {
		if len(run.Reports) != 2 {
			t.Errorf("run %s has %d reports", run.RunID, len(run.Reports))
		}
	}
}

func TestOpen(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Type = "memory"

	st, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	cfg.Storage.Type = "bogus"
	if _, err := Open(cfg); err == nil {
		t.Fatal("expected error for unsupported storage type")
	}
}
