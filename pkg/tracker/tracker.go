// Package tracker records the token usage of generation calls in SQLite.
// This is telemetry for cost visibility, not ledger state: the admission
// pipeline never reads it.
package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/easygo-cv/cvforge/pkg/models"
)

// Tracker records and queries generation usage.
type Tracker interface {
	// Record stores a usage record.
	Record(ctx context.Context, rec models.UsageRecord) error
	// TotalByCaller returns total tokens used by a caller since a given time.
	TotalByCaller(ctx context.Context, callerID string, since time.Time) (int64, error)
	// Summary returns aggregated usage, optionally filtered by caller.
	Summary(ctx context.Context, callerID string) ([]models.UsageSummary, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS usage_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	caller_id TEXT NOT NULL,
	operation TEXT NOT NULL,
	model TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	total_tokens INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_usage_caller_time ON usage_records(caller_id, created_at);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	return &SQLiteTracker{db: db}, nil
}

// Record stores a usage record.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.UsageRecord) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO usage_records (request_id, caller_id, operation, model, prompt_tokens, completion_tokens, total_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.CallerID, rec.Operation, rec.Model,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// TotalByCaller returns the caller's total tokens since a given time.
func (t *SQLiteTracker) TotalByCaller(ctx context.Context, callerID string, since time.Time) (int64, error) {
	var total sql.NullInt64
	err := t.db.QueryRowContext(ctx,
		`SELECT SUM(total_tokens) FROM usage_records WHERE caller_id = ? AND created_at >= ?`,
		callerID, since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total by caller: %w", err)
	}
	return total.Int64, nil
}

// Summary aggregates usage per caller and model. An empty callerID returns
// all callers.
func (t *SQLiteTracker) Summary(ctx context.Context, callerID string) ([]models.UsageSummary, error) {
	query := `SELECT caller_id, model, COUNT(*), SUM(prompt_tokens), SUM(completion_tokens), SUM(total_tokens)
		FROM usage_records`
	args := []any{}
	if callerID != "" {
		query += ` WHERE caller_id = ?`
		args = append(args, callerID)
	}
	query += ` GROUP BY caller_id, model ORDER BY SUM(total_tokens) DESC`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("usage summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.UsageSummary
	for rows.Next() {
		var s models.UsageSummary
		if err := rows.Scan(&s.CallerID, &s.Model, &s.RequestCount, &s.TotalPrompt, &s.TotalCompletion, &s.TotalTokens); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
