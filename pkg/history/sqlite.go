// Package history archives every request log to SQLite, giving the
// gateway a durable, queryable record beyond the 50-entry recency ring
// in the stats aggregate. The archive is a secondary sink: write
// failures are logged and swallowed and never affect request handling.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"vibehub/gateway/pkg/stats"
)

const schema = `
CREATE TABLE IF NOT EXISTS request_logs (
	id            TEXT PRIMARY KEY,
	timestamp     INTEGER NOT NULL,
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	status        INTEGER NOT NULL,
	duration_ms   INTEGER NOT NULL,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost          REAL NOT NULL,
	path          TEXT NOT NULL,
	client_agent  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_request_logs_timestamp ON request_logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_request_logs_provider ON request_logs(provider);
`

// Archive is a SQLite-backed request log store.
type Archive struct {
	db         *sql.DB
	insertStmt *sql.Stmt
	closeOnce  sync.Once
}

// NewArchive opens (or creates) the archive database at dbPath. WAL
// mode keeps concurrent reads from the admin API cheap while records
// stream in.
func NewArchive(dbPath string) (*Archive, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("history db path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	insertStmt, err := db.Prepare(`
		INSERT INTO request_logs
			(id, timestamp, provider, model, status, duration_ms,
			 input_tokens, output_tokens, cost, path, client_agent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	return &Archive{db: db, insertStmt: insertStmt}, nil
}

// Insert appends one request log to the archive.
func (a *Archive) Insert(log stats.RequestLog) error {
	_, err := a.insertStmt.Exec(
		log.ID,
		log.Timestamp,
		log.Provider,
		log.Model,
		log.Status,
		log.DurationMS,
		log.InputTokens,
		log.OutputTokens,
		log.Cost,
		log.Path,
		log.ClientAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to archive request log: %w", err)
	}
	return nil
}

// Record implements the proxy's Recorder contract: archive failures are
// logged and swallowed, same as stats persistence failures.
func (a *Archive) Record(log stats.RequestLog) {
	if err := a.Insert(log); err != nil {
		slog.Error("request history write failed", "error", err)
	}
}

// Recent returns up to limit archived logs, newest first.
func (a *Archive) Recent(ctx context.Context, limit int) ([]stats.RequestLog, error) {
	if limit <= 0 {
		limit = stats.RecentRequestLimit
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, timestamp, provider, model, status, duration_ms,
		       input_tokens, output_tokens, cost, path, client_agent
		FROM request_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query request history: %w", err)
	}
	defer rows.Close()

	var logs []stats.RequestLog
	for rows.Next() {
		var log stats.RequestLog
		if err := rows.Scan(
			&log.ID,
			&log.Timestamp,
			&log.Provider,
			&log.Model,
			&log.Status,
			&log.DurationMS,
			&log.InputTokens,
			&log.OutputTokens,
			&log.Cost,
			&log.Path,
			&log.ClientAgent,
		); err != nil {
			return nil, fmt.Errorf("failed to scan request log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// PruneBefore deletes archived logs older than cutoff and returns the
// number of rows removed.
func (a *Archive) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx,
		`DELETE FROM request_logs WHERE timestamp < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune request history: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database handle. Safe to call more than once.
func (a *Archive) Close() error {
	var closeErr error
	a.closeOnce.Do(func() {
		if a.insertStmt != nil {
			a.insertStmt.Close()
		}
		closeErr = a.db.Close()
	})
	return closeErr
}
