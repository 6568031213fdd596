package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all necessary tables and indexes.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if err := createRunsTable(ctx, db); err != nil {
		return err
	}
	return createStepsTable(ctx, db)
}

func createRunsTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		phase TEXT NOT NULL,
		version TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		status TEXT CHECK(status IN ('running', 'complete', 'aborted')) NOT NULL,
		failed_step TEXT,
		exit_code INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_phase ON runs(phase);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}
	return nil
}

func createStepsTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS steps (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		idx INTEGER NOT NULL,
		name TEXT NOT NULL,
		status TEXT CHECK(status IN ('ok', 'skipped', 'failed')) NOT NULL,
		duration_ms INTEGER NOT NULL,
		detail TEXT,
		PRIMARY KEY (run_id, idx)
	);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create steps table: %w", err)
	}
	return nil
}
