/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package ledgermirror optionally replicates finalized run events into a
// SQL database for downstream querying. It is strictly append-only: a
// mirrored event is never updated or deleted, since the ledger itself
// already enforces that a finalized event is immutable.
package ledgermirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// Database drivers — register with database/sql
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/marcus-qen/guidance/internal/guidance/ledger"
)

// Config describes the database a Mirror writes finalized events to.
type Config struct {
	// Driver is the database driver ("postgres", "mysql").
	Driver string

	// DSN is the data source name (connection string). Credentials should
	// be injected by the host, not hardcoded here.
	DSN string

	// Table is the destination table name (default "guidance_run_events").
	Table string

	// Timeout per insert (default 10s).
	Timeout time.Duration
}

// Mirror writes finalized run events to a SQL table as an append-only
// audit trail, independent of the primary NDJSON ledger.
type Mirror struct {
	db    *sql.DB
	table string
	tmout time.Duration
}

// Open connects to the configured database and ensures the destination
// table exists. The caller is responsible for calling Close.
func Open(ctx context.Context, cfg Config) (*Mirror, error) {
	if cfg.Table == "" {
		cfg.Table = "guidance_run_events"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	db, err := sql.Open(mapDriverName(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("ledgermirror: connect: %w", err)
	}

	m := &Mirror{db: db, table: cfg.Table, tmout: cfg.Timeout}

	createCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := m.ensureTable(createCtx); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

// mapDriverName maps a configured driver name to its database/sql
// registered name ("postgres"/"postgresql" both register under pgx/v5's
// stdlib driver name "pgx").
func mapDriverName(driver string) string {
	if driver == "postgres" || driver == "postgresql" {
		return "pgx"
	}
	return driver
}

// Close releases the underlying database connection.
func (m *Mirror) Close() error {
	return m.db.Close()
}

func (m *Mirror) ensureTable(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		event_id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		timestamp BIGINT NOT NULL,
		duration_ms BIGINT NOT NULL,
		intent TEXT NOT NULL,
		guidance_bundle_hash TEXT NOT NULL,
		outcome_accepted BOOLEAN NOT NULL,
		rework_lines INTEGER NOT NULL,
		content_hash TEXT NOT NULL,
		violation_count INTEGER NOT NULL,
		payload TEXT NOT NULL
	)`, m.table)
	_, err := m.db.ExecContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ledgermirror: ensure table: %w", err)
	}
	return nil
}

// Write mirrors one finalized event. It refuses events that have not been
// finalized: the mirror only ever receives completed, content-hash-sealed
// history.
func (m *Mirror) Write(ctx context.Context, e *ledger.RunEvent) error {
	if !e.Finalized() {
		return fmt.Errorf("ledgermirror: refusing to mirror an unfinalized event %s", e.EventID)
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("ledgermirror: marshal event: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, m.tmout)
	defer cancel()

	stmt := fmt.Sprintf(`INSERT INTO %s
		(event_id, task_id, timestamp, duration_ms, intent, guidance_bundle_hash,
		 outcome_accepted, rework_lines, content_hash, violation_count, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, m.table)

	_, err = m.db.ExecContext(writeCtx, stmt,
		e.EventID, e.TaskID, e.Timestamp, e.DurationMs, e.Intent, e.GuidanceBundleHash,
		e.OutcomeAccepted, e.ReworkLines, e.ContentHash, len(e.Violations), string(payload),
	)
	if err != nil {
		return fmt.Errorf("ledgermirror: insert event %s: %w", e.EventID, err)
	}
	return nil
}

// WriteBatch mirrors a batch of finalized events in one transaction, so a
// bulk export never leaves the mirror half-populated.
func (m *Mirror) WriteBatch(ctx context.Context, events []*ledger.RunEvent) error {
	for _, e := range events {
		if !e.Finalized() {
			return fmt.Errorf("ledgermirror: refusing to mirror an unfinalized event %s", e.EventID)
		}
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledgermirror: begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`INSERT INTO %s
		(event_id, task_id, timestamp, duration_ms, intent, guidance_bundle_hash,
		 outcome_accepted, rework_lines, content_hash, violation_count, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, m.table)

	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("ledgermirror: marshal event %s: %w", e.EventID, err)
		}
		if _, err := tx.ExecContext(ctx, stmt,
			e.EventID, e.TaskID, e.Timestamp, e.DurationMs, e.Intent, e.GuidanceBundleHash,
			e.OutcomeAccepted, e.ReworkLines, e.ContentHash, len(e.Violations), string(payload),
		); err != nil {
			return fmt.Errorf("ledgermirror: insert event %s: %w", e.EventID, err)
		}
	}

	return tx.Commit()
}

// CountForTask returns how many events have been mirrored for a task, used
// by callers that want to verify replication caught up before trusting the
// mirror for a read.
func (m *Mirror) CountForTask(ctx context.Context, taskID string) (int, error) {
	queryCtx, cancel := context.WithTimeout(ctx, m.tmout)
	defer cancel()

	stmt := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE task_id = ?`, m.table)
	var n int
	if err := m.db.QueryRowContext(queryCtx, stmt, taskID).Scan(&n); err != nil {
		return 0, fmt.Errorf("ledgermirror: count for task %s: %w", taskID, err)
	}
	return n, nil
}
