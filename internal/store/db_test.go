package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenMemory(t *testing.T) {
	db := testDB(t)
	if db.Path != MemoryPath {
		t.Errorf("Path = %q, want %q", db.Path, MemoryPath)
	}
}

func TestOpenCreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "katachi.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if db.Path != path {
		t.Errorf("Path = %q, want %q", db.Path, path)
	}
}

func TestSchemaVersion(t *testing.T) {
	db := testDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("SchemaVersion = %d, want %d", v, len(migrations))
	}
}

func TestTablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"schema_versions", "metrics", "meta", "tasks"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestMetricsConstraints(t *testing.T) {
	db := testDB(t)

	if _, err := db.Exec(`INSERT INTO metrics (key, value) VALUES ('energy', 42.5)`); err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}

	bad := []string{
		`INSERT INTO metrics (key, value) VALUES ('karma', 10)`,
		`INSERT INTO metrics (key, value) VALUES ('mood', 101)`,
		`INSERT INTO metrics (key, value) VALUES ('focus', -0.5)`,
	}
	for _, q := range bad {
		if _, err := db.Exec(q); err == nil {
			t.Errorf("expected error for %s, got nil", q)
		}
	}
}

func TestTasksConstraints(t *testing.T) {
	db := testDB(t)

	_, err := db.Exec(`
		INSERT INTO tasks (name, effect, type, label, completed, count, updated_at)
		VALUES ('walk', '{"energy":10}', 'check', 'daily', 1, 0, 1000)
	`)
	if err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}

	// Invalid type
	_, err = db.Exec(`
		INSERT INTO tasks (name, type, updated_at) VALUES ('x', 'toggle', 1000)
	`)
	if err == nil {
		t.Error("expected error for invalid type, got nil")
	}

	// Negative count
	_, err = db.Exec(`
		INSERT INTO tasks (name, type, count, updated_at) VALUES ('y', 'counter', -1, 1000)
	`)
	if err == nil {
		t.Error("expected error for negative count, got nil")
	}

	// Blank name
	_, err = db.Exec(`
		INSERT INTO tasks (name, type, updated_at) VALUES ('  ', 'check', 1000)
	`)
	if err == nil {
		t.Error("expected error for blank name, got nil")
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db := testDB(t)

	// Running migrate again should be a no-op
	if err := db.migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("SchemaVersion after re-migrate = %d, want %d", v, len(migrations))
	}
}

func TestMigrateRefusesNewerSchema(t *testing.T) {
	db := testDB(t)

	if _, err := db.Exec(
		"INSERT INTO schema_versions (version, description) VALUES (99, 'from the future')",
	); err != nil {
		t.Fatalf("insert version: %v", err)
	}
	err := db.migrate(context.Background())
	if !errors.Is(err, ErrSchemaTooNew) {
		t.Fatalf("migrate = %v, want ErrSchemaTooNew", err)
	}
}

func TestOpenRefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "katachi.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := db.Exec(
		"INSERT INTO schema_versions (version, description) VALUES (99, 'from the future')",
	); err != nil {
		t.Fatalf("insert version: %v", err)
	}
	db.Close()

	if db, err = Open(path); !errors.Is(err, ErrSchemaTooNew) {
		if db != nil {
			db.Close()
		}
		t.Fatalf("reopen = %v, want ErrSchemaTooNew", err)
	}
}

func TestWALMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "katachi.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}
