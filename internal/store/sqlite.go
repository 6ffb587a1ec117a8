package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stellarlinkco/diag-eval/internal/runner"
)

const defaultListLimit = 50

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	insertRunStmt    *sql.Stmt
	insertReportStmt *sql.Stmt
	getRunStmt       *sql.Stmt
	reportsByRunStmt *sql.Stmt
	getReportStmt    *sql.Stmt
}

// NewSQLiteStore opens or creates a SQLite store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db}
	if err := st.prepareStatements(); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			started_at INTEGER NOT NULL,
			total_cases INTEGER NOT NULL,
			passed_cases INTEGER NOT NULL,
			failed_cases INTEGER NOT NULL,
			errored_cases INTEGER NOT NULL,
			pass_rate REAL NOT NULL,
			duration_ms INTEGER NOT NULL,
			summary_json TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reports (
			case_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			category TEXT NOT NULL,
			status TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			report_json BLOB NOT NULL,
			PRIMARY KEY (case_id, run_id),
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_run_id ON reports(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_category ON reports(category)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}

	ctx := context.Background()
	type stmtSpec struct {
		dst    **sql.Stmt
		query  string
		errFmt string
	}

	specs := []stmtSpec{
		{
			dst: &s.insertRunStmt,
			query: `
				INSERT INTO runs (
					id, mode, iteration, started_at, total_cases, passed_cases,
					failed_cases, errored_cases, pass_rate, duration_ms, summary_json
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert run: %w",
		},
		{
			dst: &s.insertReportStmt,
			query: `
				INSERT INTO reports (
					case_id, run_id, category, status, duration_ms, created_at, report_json
				) VALUES (?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert report: %w",
		},
		{
			dst: &s.getRunStmt,
			query: `
				SELECT id, mode, iteration, started_at, duration_ms, summary_json
				FROM runs WHERE id = ?
			`,
			errFmt: "store: prepare get run: %w",
		},
		{
			dst: &s.reportsByRunStmt,
			query: `
				SELECT report_json FROM reports
				WHERE run_id = ?
				ORDER BY created_at ASC, case_id ASC
			`,
			errFmt: "store: prepare reports by run: %w",
		},
		{
			dst: &s.getReportStmt,
			query: `
				SELECT report_json FROM reports
				WHERE run_id = ? AND case_id = ?
			`,
			errFmt: "store: prepare get report: %w",
		},
	}

	for _, spec := range specs {
		stmt, err := s.db.PrepareContext(ctx, spec.query)
		if err != nil {
			return fmt.Errorf(spec.errFmt, err)
		}
		*spec.dst = stmt
	}

	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	stmts := []*sql.Stmt{
		s.insertRunStmt,
		s.insertReportStmt,
		s.getRunStmt,
		s.reportsByRunStmt,
		s.getReportStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRun persists one run and all of its reports in a single transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *runner.SingleRunResult) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if run == nil {
		return errors.New("store: nil run")
	}

	id := strings.TrimSpace(run.RunID)
	if id == "" {
		return errors.New("store: empty run id")
	}

	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("store: marshal summary: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin run tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	runStmt := tx.StmtContext(ctx, s.insertRunStmt)
	defer runStmt.Close()

	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	_, err = runStmt.ExecContext(
		ctx,
		id,
		run.Mode,
		run.Iteration,
		startedAt.UTC().UnixMilli(),
		run.Summary.Total,
		run.Summary.Passed,
		run.Summary.Failed,
		run.Summary.Errored,
		run.Summary.PassRate,
		run.DurationMs,
		string(summaryJSON),
	)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}

	repStmt := tx.StmtContext(ctx, s.insertReportStmt)
	defer repStmt.Close()

	for i := range run.Reports {
		rep := &run.Reports[i]
		if strings.TrimSpace(rep.CaseID) == "" {
			return fmt.Errorf("store: report %d has empty case id", i)
		}
		repJSON, err := json.Marshal(rep)
		if err != nil {
			return fmt.Errorf("store: marshal report %s: %w", rep.CaseID, err)
		}
		createdAt := rep.Timestamp
		if createdAt.IsZero() {
			createdAt = startedAt
		}
		_, err = repStmt.ExecContext(
			ctx,
			rep.CaseID,
			id,
			rep.Category,
			string(rep.Status),
			rep.DurationMs,
			createdAt.UTC().UnixMilli(),
			repJSON,
		)
		if err != nil {
			return fmt.Errorf("store: insert report %s: %w", rep.CaseID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit run: %w", err)
	}
	return nil
}

// GetRun returns one run with its full report list.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*runner.SingleRunResult, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("store: empty run id")
	}

	row := s.getRunStmt.QueryRowContext(ctx, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: get run: %w", err)
	}

	reports, err := s.GetReports(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Reports = reports
	return run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*runner.SingleRunResult, error) {
	var (
		runID       string
		mode        string
		iteration   int
		startedAtMS int64
		durationMS  int64
		summaryJSON string
	)
	if err := row.Scan(&runID, &mode, &iteration, &startedAtMS, &durationMS, &summaryJSON); err != nil {
		return nil, err
	}

	var summary runner.EvalSummary
	if err := json.Unmarshal([]byte(summaryJSON), &summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}

	return &runner.SingleRunResult{
		RunID:      runID,
		Mode:       mode,
		Iteration:  iteration,
		StartedAt:  time.UnixMilli(startedAtMS).UTC(),
		DurationMs: durationMS,
		Summary:    summary,
	}, nil
}

// ListRuns returns run listing rows matching the filter, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var sb strings.Builder
	sb.WriteString(`SELECT id, mode, iteration, started_at, total_cases, passed_cases, failed_cases, errored_cases, pass_rate, duration_ms FROM runs WHERE 1=1`)

	var args []any
	if mode := strings.TrimSpace(filter.Mode); mode != "" {
		sb.WriteString(` AND mode = ?`)
		args = append(args, mode)
	}
	if !filter.Since.IsZero() {
		sb.WriteString(` AND started_at >= ?`)
		args = append(args, filter.Since.UTC().UnixMilli())
	}
	if !filter.Until.IsZero() {
		sb.WriteString(` AND started_at <= ?`)
		args = append(args, filter.Until.UTC().UnixMilli())
	}
	sb.WriteString(` ORDER BY started_at DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []*RunRecord
	for rows.Next() {
		var (
			rec         RunRecord
			startedAtMS int64
		)
		if err := rows.Scan(&rec.ID, &rec.Mode, &rec.Iteration, &startedAtMS, &rec.Total, &rec.Passed, &rec.Failed, &rec.Errored, &rec.PassRate, &rec.DurationMs); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		rec.StartedAt = time.UnixMilli(startedAtMS).UTC()
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	return out, nil
}

// GetReports lists all reports for a run in insertion order.
func (s *SQLiteStore) GetReports(ctx context.Context, runID string) ([]runner.EvalReport, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, errors.New("store: empty run id")
	}

	rows, err := s.reportsByRunStmt.QueryContext(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("store: get reports: %w", err)
	}
	defer rows.Close()

	var out []runner.EvalReport
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("store: scan report: %w", err)
		}
		var rep runner.EvalReport
		if err := json.Unmarshal(raw, &rep); err != nil {
			return nil, fmt.Errorf("store: decode report: %w", err)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: get reports: %w", err)
	}
	return out, nil
}

// GetReport returns one report by (runID, caseID).
func (s *SQLiteStore) GetReport(ctx context.Context, runID string, caseID string) (*runner.EvalReport, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	runID = strings.TrimSpace(runID)
	caseID = strings.TrimSpace(caseID)
	if runID == "" || caseID == "" {
		return nil, errors.New("store: empty run/case id")
	}

	var raw []byte
	if err := s.getReportStmt.QueryRowContext(ctx, runID, caseID).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: get report: %w", err)
	}

	var rep runner.EvalReport
	if err := json.Unmarshal(raw, &rep); err != nil {
		return nil, fmt.Errorf("store: decode report: %w", err)
	}
	return &rep, nil
}

// LoadRuns materializes full runs, reports included, for aggregation.
func (s *SQLiteStore) LoadRuns(ctx context.Context, filter RunFilter) ([]runner.SingleRunResult, error) {
	recs, err := s.ListRuns(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]runner.SingleRunResult, 0, len(recs))
	for _, rec := range recs {
		run, err := s.GetRun(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, nil
}
