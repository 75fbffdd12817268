package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Ting2004/katachi/internal/snapshot"
)

// FileStore persists the snapshot as two JSON documents: the metric record and
// the task catalog. Each file is replaced atomically; the pair is not.
type FileStore struct {
	StatePath string
	TasksPath string
}

// NewFileStore returns a FileStore writing state.json and tasks.json under dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		StatePath: filepath.Join(dir, "state.json"),
		TasksPath: filepath.Join(dir, "tasks.json"),
	}
}

// Load reads both files. A missing file leaves its half nil; both missing is
// snapshot.ErrNotFound.
func (s *FileStore) Load(ctx context.Context) (*snapshot.Snapshot, error) {
	snap := &snapshot.Snapshot{}

	var m snapshot.Metrics
	found, err := readJSON(s.StatePath, &m)
	if err != nil {
		return nil, err
	}
	if found {
		if m.Metrics == nil {
			m.Metrics = map[string]float64{}
		}
		snap.Metrics = &m
	}

	var recs snapshot.Tasks
	found, err = readJSON(s.TasksPath, &recs)
	if err != nil {
		return nil, err
	}
	if found {
		if recs == nil {
			recs = snapshot.Tasks{}
		}
		snap.Tasks = recs
	}

	if snap.Metrics == nil && snap.Tasks == nil {
		return nil, snapshot.ErrNotFound
	}
	return snap, ctx.Err()
}

// Save writes the non-nil halves of snap.
func (s *FileStore) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	if snap == nil {
		return errors.New("save: nil snapshot")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.Metrics != nil {
		if err := writeJSON(s.StatePath, snap.Metrics); err != nil {
			return err
		}
	}
	if snap.Tasks != nil {
		if err := writeJSON(s.TasksPath, snap.Tasks); err != nil {
			return err
		}
	}
	return nil
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
