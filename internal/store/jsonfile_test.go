package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/Ting2004/katachi/internal/snapshot"
)

func TestFileStoreNotFound(t *testing.T) {
	fs := NewFileStore(t.TempDir())

	_, err := fs.Load(context.Background())
	if !errors.Is(err, snapshot.ErrNotFound) {
		t.Fatalf("Load = %v, want ErrNotFound", err)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	ctx := context.Background()
	want := sampleSnapshot()

	if err := fs.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch\n got: %+v\nwant: %+v", got, want)
	}

	// No temp files left behind
	entries, _ := os.ReadDir(filepath.Dir(fs.StatePath))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestFileStoreFormat(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	if err := fs.Save(context.Background(), sampleSnapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(fs.StatePath)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	for _, want := range []string{`"metrics": {`, `"last_update": 1773144000.5`, `"last_reset": "2026-03-10"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("state.json missing %s:\n%s", want, data)
		}
	}

	data, err = os.ReadFile(fs.TasksPath)
	if err != nil {
		t.Fatalf("read tasks: %v", err)
	}
	if !strings.Contains(string(data), `"walk": {`) || !strings.Contains(string(data), `"completed": true`) {
		t.Errorf("unexpected tasks.json:\n%s", data)
	}
}

func TestFileStoreOneHalfMissing(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	ctx := context.Background()
	if err := fs.Save(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.Remove(fs.TasksPath); err != nil {
		t.Fatalf("remove tasks: %v", err)
	}

	got, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Metrics == nil || got.Tasks != nil {
		t.Errorf("Load = %+v, want metrics only", got)
	}
}

func TestFileStoreMalformed(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	if err := os.WriteFile(fs.StatePath, []byte(`{"metrics": `), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := fs.Load(context.Background())
	if err == nil || errors.Is(err, snapshot.ErrNotFound) {
		t.Errorf("Load = %v, want parse error", err)
	}
}
