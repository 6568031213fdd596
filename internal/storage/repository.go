package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StartRun inserts a run in the running state.
func (db *DB) StartRun(ctx context.Context, run *Run) error {
	query := `INSERT INTO runs (id, phase, version, started_at, status) VALUES (?, ?, ?, ?, 'running')`
	if _, err := db.conn.ExecContext(ctx, query, run.ID, run.Phase, run.Version, run.StartedAt.UnixMilli()); err != nil {
		return fmt.Errorf("failed to start run %s: %w", run.ID, err)
	}
	run.Status = "running"
	return nil
}

// RecordStep stores a step outcome.
func (db *DB) RecordStep(ctx context.Context, step *StepRecord) error {
	query := `
	INSERT INTO steps (run_id, idx, name, status, duration_ms, detail)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, idx) DO UPDATE SET
		name = excluded.name,
		status = excluded.status,
		duration_ms = excluded.duration_ms,
		detail = excluded.detail
	`
	if _, err := db.conn.ExecContext(ctx, query,
		step.RunID, step.Index, step.Name, step.Status, step.Duration.Milliseconds(), nullString(step.Detail),
	); err != nil {
		return fmt.Errorf("failed to record step %d of run %s: %w", step.Index, step.RunID, err)
	}
	return nil
}

// FinishRun marks a run complete or aborted.
func (db *DB) FinishRun(ctx context.Context, runID, status, failedStep string, exitCode int, finishedAt time.Time) error {
	query := `UPDATE runs SET status = ?, failed_step = ?, exit_code = ?, finished_at = ? WHERE id = ?`
	res, err := db.conn.ExecContext(ctx, query, status, nullString(failedStep), exitCode, finishedAt.UnixMilli(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to finish run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
	SELECT id, phase, COALESCE(version, ''), started_at, COALESCE(finished_at, 0), status,
		COALESCE(failed_step, ''), COALESCE(exit_code, 0)
	FROM runs
	ORDER BY started_at DESC, rowid DESC
	LIMIT ?
	`
	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished int64
		)
		if err := rows.Scan(&r.ID, &r.Phase, &r.Version, &started, &finished, &r.Status, &r.FailedStep, &r.ExitCode); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		if finished > 0 {
			r.FinishedAt = time.UnixMilli(finished)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// StepsForRun returns the steps of a run in execution order.
func (db *DB) StepsForRun(ctx context.Context, runID string) ([]StepRecord, error) {
	query := `SELECT idx, name, status, duration_ms, COALESCE(detail, '') FROM steps WHERE run_id = ? ORDER BY idx`
	rows, err := db.conn.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps for run %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	var steps []StepRecord
	for rows.Next() {
		s := StepRecord{RunID: runID}
		var ms int64
		if err := rows.Scan(&s.Index, &s.Name, &s.Status, &ms, &s.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		s.Duration = time.Duration(ms) * time.Millisecond
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
