package store

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS definitions (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id        TEXT    NOT NULL UNIQUE,
		name               TEXT    NOT NULL,
		job_ref            TEXT    NOT NULL,
		chat_id            TEXT    NOT NULL DEFAULT '',
		template_name      TEXT    NOT NULL DEFAULT '',
		template_namespace TEXT    NOT NULL DEFAULT '',
		kind               TEXT    NOT NULL,
		interval_seconds   INTEGER NOT NULL DEFAULT 0,
		cron_minute        TEXT    NOT NULL DEFAULT '*',
		cron_hour          TEXT    NOT NULL DEFAULT '*',
		cron_day_of_month  TEXT    NOT NULL DEFAULT '*',
		cron_month         TEXT    NOT NULL DEFAULT '*',
		cron_day_of_week   TEXT    NOT NULL DEFAULT '*',
		beat_key           TEXT    NOT NULL DEFAULT '',
		end_at             TEXT,
		execution_count    INTEGER NOT NULL DEFAULT 0,
		max_executions     INTEGER,
		active             INTEGER NOT NULL DEFAULT 1,
		group_id           TEXT    NOT NULL DEFAULT '',
		created_at         TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		updated_at         TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,

	`CREATE INDEX IF NOT EXISTS idx_definitions_group ON definitions(group_id)`,

	`CREATE TABLE IF NOT EXISTS bulk_definitions (
		id                 TEXT PRIMARY KEY,
		chat_ids           TEXT NOT NULL,
		name               TEXT NOT NULL,
		job_ref            TEXT NOT NULL,
		template_name      TEXT NOT NULL DEFAULT '',
		template_namespace TEXT NOT NULL DEFAULT '',
		kind               TEXT NOT NULL,
		interval_seconds   INTEGER NOT NULL DEFAULT 0,
		cron_minute        TEXT NOT NULL DEFAULT '*',
		cron_hour          TEXT NOT NULL DEFAULT '*',
		cron_day_of_month  TEXT NOT NULL DEFAULT '*',
		cron_month         TEXT NOT NULL DEFAULT '*',
		cron_day_of_week   TEXT NOT NULL DEFAULT '*',
		end_at             TEXT,
		max_executions     INTEGER,
		active             INTEGER NOT NULL DEFAULT 1,
		created_at         TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		updated_at         TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,

	`CREATE TABLE IF NOT EXISTS executions (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		definition_id      INTEGER REFERENCES definitions(id),
		external_id        TEXT NOT NULL DEFAULT '',
		executed_date      TEXT NOT NULL,
		executed_time      TEXT NOT NULL,
		status             TEXT NOT NULL,
		definition_name    TEXT NOT NULL DEFAULT '',
		schedule_kind      TEXT NOT NULL DEFAULT '',
		chat_id            TEXT NOT NULL DEFAULT '',
		template_name      TEXT NOT NULL DEFAULT '',
		template_namespace TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX IF NOT EXISTS idx_executions_definition ON executions(definition_id)`,
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(db *sql.DB) error {
	ctx := context.TODO()

	// Ensure schema_version table exists first.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("store: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("store: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("store: record schema version: %w", err)
	}

	return nil
}
