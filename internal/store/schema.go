// Package store persists experiment runs to SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the SQLite store.
const schemaV1 = `
-- Run summaries (one row per experiment run)
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    seed INTEGER NOT NULL,
    clusters INTEGER NOT NULL,
    cycles INTEGER NOT NULL,
    global_coherence REAL NOT NULL,

    -- Attractor verdict
    is_attractor INTEGER NOT NULL,
    estimated_value REAL NOT NULL,
    stddev REAL NOT NULL,
    confidence REAL NOT NULL,
    bound_low REAL NOT NULL,
    bound_high REAL NOT NULL,

    final_coherences TEXT NOT NULL,  -- JSON array
    config TEXT,                     -- JSON, the full run configuration

    created_at TEXT NOT NULL
);

-- Post-release recovery measurements
CREATE TABLE IF NOT EXISTS return_times (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    cluster INTEGER NOT NULL,
    domain TEXT NOT NULL,
    perturbation_target REAL NOT NULL,
    released_at INTEGER NOT NULL,
    return_cycles INTEGER  -- NULL when the window expired without a return
);
CREATE INDEX IF NOT EXISTS idx_return_times_run ON return_times(run_id);

-- Cycles at which every cluster sat inside the synchronized band
CREATE TABLE IF NOT EXISTS sync_events (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    cycle INTEGER NOT NULL,
    global_coherence REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sync_events_run ON sync_events(run_id);

-- Ouroboros mode transitions
CREATE TABLE IF NOT EXISTS transitions (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    cluster INTEGER NOT NULL,
    domain TEXT NOT NULL,
    cycle INTEGER NOT NULL,
    from_mode TEXT NOT NULL,
    to_mode TEXT NOT NULL,
    coherence REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transitions_run ON transitions(run_id);

-- Stability:exploration dwell balance per domain
CREATE TABLE IF NOT EXISTS balance (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    domain TEXT NOT NULL,
    stability_cycles INTEGER NOT NULL,
    exploration_cycles INTEGER NOT NULL,
    ratio REAL NOT NULL,
    status TEXT NOT NULL,
    PRIMARY KEY (run_id, domain)
);

-- Schema version
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema brings the database up to SchemaVersion. A fresh database gets
// the whole schema in one step; an existing one is integrity-checked and
// then walked through whatever migration steps it is missing.
func InitSchema(ctx context.Context, db *sql.DB) error {
	version, err := schemaVersion(ctx, db)
	if err != nil {
		// No readable schema_version table, so the database is empty.
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}

	for v := version + 1; v <= SchemaVersion; v++ {
		if err := migrateTo(ctx, db, v); err != nil {
			return fmt.Errorf("failed to migrate schema to v%d: %w", v, err)
		}
	}
	return nil
}

// schemaVersion reads the highest version recorded in schema_version. The
// query errors on databases that predate the table.
func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&v)
	return v, err
}

// createSchema lays down the full current schema and records its version,
// both inside one transaction.
func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}

// migrateTo applies the single migration step that ends at version. Schema
// v1 is the baseline and is only ever created whole, so the first real step
// lands here together with v2.
func migrateTo(ctx context.Context, db *sql.DB, version int) error {
	return nil
}

// ValidateIntegrity runs SQLite's integrity_check and foreign_key_check
// pragmas. A healthy database yields a single "ok" row from the former and
// no rows at all from the latter.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `PRAGMA integrity_check`)
	if err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return fmt.Errorf("failed to scan integrity_check result: %w", err)
		}
		if result != "ok" {
			return fmt.Errorf("integrity_check failed: %s", result)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read integrity_check results: %w", err)
	}

	fkRows, err := db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("failed to run foreign_key_check: %w", err)
	}
	defer fkRows.Close()
	var violations []string
	for fkRows.Next() {
		var table, parent string
		var rowid, fkid int64
		if err := fkRows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to scan foreign_key_check result: %w", err)
		}
		violations = append(violations,
			fmt.Sprintf("%s rowid %d breaks fk %d into %s", table, rowid, fkid, parent))
	}
	if err := fkRows.Err(); err != nil {
		return fmt.Errorf("failed to read foreign_key_check results: %w", err)
	}
	if len(violations) > 0 {
		return fmt.Errorf("foreign_key_check failed: %s", strings.Join(violations, "; "))
	}
	return nil
}

// ResetSchema drops every table and recreates the schema from scratch.
// Test support only.
func ResetSchema(ctx context.Context, db *sql.DB) error {
	tables := []string{
		"balance",
		"transitions",
		"sync_events",
		"return_times",
		"runs",
		"schema_version",
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}

	return createSchema(ctx, db)
}
