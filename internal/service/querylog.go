package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// QueryLogEntry is one answered question as persisted in query_logs.
type QueryLogEntry struct {
	SessionID    string    `json:"session_id"`
	Query        string    `json:"query"`
	SQL          string    `json:"sql"`
	Timestamp    time.Time `json:"timestamp"`
	ResultsCount int       `json:"results_count"`
}

// QueryLog persists answered questions in a SQLite table.
type QueryLog struct {
	db *sql.DB
}

const createQueryLogTable = `
CREATE TABLE IF NOT EXISTS query_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	query TEXT NOT NULL,
	sql_generated TEXT,
	timestamp TEXT NOT NULL,
	results_count INTEGER DEFAULT 0
)`

// NewQueryLog creates the query_logs table if needed.
func NewQueryLog(ctx context.Context, db *sql.DB) (*QueryLog, error) {
	if _, err := db.ExecContext(ctx, createQueryLogTable); err != nil {
		return nil, fmt.Errorf("create query_logs: %w", err)
	}
	return &QueryLog{db: db}, nil
}

func (l *QueryLog) Record(ctx context.Context, e QueryLogEntry) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO query_logs (session_id, query, sql_generated, timestamp, results_count) VALUES (?, ?, ?, ?, ?)`,
		e.SessionID, e.Query, e.SQL, e.Timestamp.UTC().Format(time.RFC3339Nano), e.ResultsCount)
	if err != nil {
		return fmt.Errorf("record query: %w", err)
	}
	return nil
}

// Recent returns up to limit entries for sessionID, newest first.
func (l *QueryLog) Recent(ctx context.Context, sessionID string, limit int) ([]QueryLogEntry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT session_id, query, COALESCE(sql_generated, ''), timestamp, results_count
		 FROM query_logs WHERE session_id = ? ORDER BY id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent queries: %w", err)
	}
	defer rows.Close()

	var entries []QueryLogEntry
	for rows.Next() {
		var (
			e  QueryLogEntry
			ts string
		)
		if err := rows.Scan(&e.SessionID, &e.Query, &e.SQL, &ts, &e.ResultsCount); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
