package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "metrics + meta: metric values and snapshot bookkeeping",
		SQL: `
CREATE TABLE metrics (
    key        TEXT PRIMARY KEY CHECK (key IN ('health', 'hydration', 'sleep', 'energy', 'relax', 'focus', 'mood', 'social')),
    value      REAL NOT NULL CHECK (value >= 0 AND value <= 100)
);

CREATE TABLE meta (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "tasks: task catalog with completion state",
		SQL: `
CREATE TABLE tasks (
    name       TEXT PRIMARY KEY CHECK (length(trim(name)) > 0),
    effect     TEXT NOT NULL DEFAULT '{}',
    type       TEXT NOT NULL CHECK (type IN ('check', 'counter')),
    label      TEXT NOT NULL DEFAULT 'custom',
    completed  INTEGER NOT NULL DEFAULT 0 CHECK (completed IN (0, 1)),
    count      INTEGER NOT NULL DEFAULT 0 CHECK (count >= 0),
    updated_at INTEGER NOT NULL
);

CREATE INDEX idx_tasks_label ON tasks(label);
`,
	},
}

// ErrSchemaTooNew is returned when the database was written by a newer
// katachi with migrations this build does not know.
var ErrSchemaTooNew = errors.New("database schema is newer than this build")

const createSchemaVersions = `
CREATE TABLE IF NOT EXISTS schema_versions (
    version     INTEGER PRIMARY KEY,
    description TEXT NOT NULL,
    applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
)`

func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, createSchemaVersions); err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}
	latest := migrations[len(migrations)-1].Version
	for v := range applied {
		if v > latest {
			return fmt.Errorf("%w: version %d, known up to %d", ErrSchemaTooNew, v, latest)
		}
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		err := db.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
				return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
				m.Version, m.Description)
			if err != nil {
				return fmt.Errorf("record migration %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_versions")
	if err != nil {
		return nil, fmt.Errorf("query schema_versions: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan schema version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// SchemaVersion returns the highest applied migration.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
