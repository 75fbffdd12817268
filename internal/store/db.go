package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// MemoryPath is the Path of a database opened with OpenMemory.
const MemoryPath = ":memory:"

// DB is the SQLite snapshot store. It implements engine.Persister.
type DB struct {
	*sql.DB
	Path string
}

// filePragmas tune the on-disk database for one writer (the engine) and a
// few readers. busy_timeout covers a CLI running next to a server.
var filePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

// memoryPragmas skip journaling settings that have no effect in memory.
var memoryPragmas = []string{
	"PRAGMA foreign_keys=ON",
}

// DefaultDir returns the katachi data directory: ~/.katachi
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".katachi"), nil
}

// DefaultDBPath returns the default database path: ~/.katachi/katachi.db
func DefaultDBPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "katachi.db"), nil
}

// Open opens the snapshot database at path, creating the file and its
// directory when missing, and brings the schema up to date.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return open(path, filePragmas, 0)
}

// OpenMemory opens a private in-memory database, used by tests and dry runs.
func OpenMemory() (*DB, error) {
	// Each connection to :memory: would get its own empty database.
	return open(MemoryPath, memoryPragmas, 1)
}

func open(path string, pragmas []string, maxConns int) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(maxConns)
	}

	db := &DB{DB: sqlDB, Path: path}
	ctx := context.Background()
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if err := db.migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return db, nil
}
