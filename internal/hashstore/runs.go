package hashstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run statuses.
const (
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is one recorded export.
type Run struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Target      string
	Mode        int
	Descriptors int
	Groups      int
	Files       int
	Errors      int
	Status      string
	Message     string
}

// Duration is how long the run took.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RecordRun stores a finished run.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("record run: id required")
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO runs (
                id, started_at, finished_at, target, mode, descriptors,
                groups_written, files, errors, status, error_message
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			run.StartedAt.UTC().Format(time.RFC3339Nano),
			nullableTime(run.FinishedAt),
			run.Target,
			run.Mode,
			run.Descriptors,
			run.Groups,
			run.Files,
			run.Errors,
			run.Status,
			nullableString(run.Message),
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		return nil
	})
}

// ListRuns returns the most recent runs, newest first. A limit <= 0 returns
// every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, started_at, finished_at, target, mode, descriptors,
        groups_written, files, errors, status, error_message
        FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run      Run
			started  string
			finished sql.NullString
			message  sql.NullString
		)
		if err := rows.Scan(&run.ID, &started, &finished, &run.Target, &run.Mode, &run.Descriptors,
			&run.Groups, &run.Files, &run.Errors, &run.Status, &message); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		if finished.Valid {
			run.FinishedAt = parseTime(finished.String)
		}
		run.Message = message.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
