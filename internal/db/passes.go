package db

import (
	"context"
)

// =============================================================================
// Pass Run Operations
// =============================================================================

// CreatePassRun records the outcome of one reconciliation pass
func (db *DB) CreatePassRun(ctx context.Context, run *PassRun) error {
	query := `
		INSERT INTO pass_runs (
			id, started_at, finished_at, final_state, failure_kind, error,
			fetched, added, removed, notified, failed, deferred
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		run.ID,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		run.FinalState,
		run.FailureKind,
		run.Error,
		run.Fetched,
		run.Added,
		run.Removed,
		run.Notified,
		run.Failed,
		run.Deferred,
	)
	return err
}

// ListPassRuns returns the most recent pass runs, newest first
func (db *DB) ListPassRuns(ctx context.Context, limit int) ([]PassRun, error) {
	query := `
		SELECT id, started_at, finished_at, final_state, failure_kind, error,
		       fetched, added, removed, notified, failed, deferred
		FROM pass_runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []PassRun{}
	for rows.Next() {
		run, err := scanPassRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPassRun(row rowScanner) (*PassRun, error) {
	var run PassRun
	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.FinalState,
		&run.FailureKind,
		&run.Error,
		&run.Fetched,
		&run.Added,
		&run.Removed,
		&run.Notified,
		&run.Failed,
		&run.Deferred,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
