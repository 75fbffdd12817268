package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel/metric"

	"github.com/Ting2004/katachi/internal/client"
	"github.com/Ting2004/katachi/internal/defaults"
	"github.com/Ting2004/katachi/internal/engine"
	"github.com/Ting2004/katachi/internal/snapshot"
	"github.com/Ting2004/katachi/internal/store"
	"github.com/Ting2004/katachi/internal/tasks"
)

// backend is what the task and maintenance commands run against: a running
// server when one answers, otherwise an engine opened on the local store.
type backend interface {
	State(ctx context.Context) (snapshot.View, error)
	Tasks(ctx context.Context, label string) ([]snapshot.TaskRecord, error)
	CreateTask(ctx context.Context, in snapshot.TaskInput) (snapshot.TaskRecord, error)
	UpdateTask(ctx context.Context, name string, p snapshot.TaskPatch) (snapshot.TaskRecord, error)
	DeleteTask(ctx context.Context, name string) error
	Toggle(ctx context.Context, name string, done bool) (snapshot.TaskRecord, error)
	Decay(ctx context.Context) (snapshot.View, error)
	Reset(ctx context.Context) (snapshot.View, error)
	RestoreDefaults(ctx context.Context) (snapshot.View, error)
	Close(ctx context.Context) error
}

type remote struct {
	*client.Client
}

func (remote) Close(context.Context) error { return nil }

// openBackend prefers a running server so the CLI and the server never both
// write the same store.
func (a *app) openBackend(ctx context.Context) (backend, error) {
	c := client.New(a.cfg.BaseURL())
	if c.Healthy(ctx) {
		a.logger.Debug("using running server", "url", c.URL())
		return remote{c}, nil
	}
	eng, closer, err := a.openEngine(ctx, nil)
	if err != nil {
		return nil, err
	}
	if err := eng.CatchUp(ctx); err != nil {
		a.logger.Warn("catch-up maintenance failed", "err", err)
	}
	return &local{eng: eng, closer: closer}, nil
}

// openEngine opens the configured store and loads the engine on it. The
// returned closer releases the store after the engine is closed. A nil meter
// uses the global provider.
func (a *app) openEngine(ctx context.Context, meter metric.Meter) (*engine.Engine, io.Closer, error) {
	persister, closer, desc, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}
	profile, err := defaults.Load(a.cfg.Defaults.Profile, a.cfg.Defaults.Tasks)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	eng, err := engine.Open(ctx, engine.Options{
		Persister: persister,
		Defaults:  profile,
		Logger:    a.logger,
		ResetHour: &a.cfg.Schedule.ResetHour,
		Meter:     meter,
	})
	if err != nil {
		closer.Close()
		return nil, nil, fmt.Errorf("open %s: %w", desc, err)
	}
	a.logger.Debug("opened store", "backend", a.cfg.Storage.Backend, "location", desc)
	return eng, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func (a *app) openStore() (engine.Persister, io.Closer, string, error) {
	switch a.cfg.Storage.Backend {
	case "json":
		dir := a.cfg.Storage.Dir
		if dir == "" {
			var err error
			if dir, err = store.DefaultDir(); err != nil {
				return nil, nil, "", fmt.Errorf("resolve state dir: %w", err)
			}
		}
		return store.NewFileStore(dir), nopCloser{}, dir, nil
	default:
		path := a.cfg.Storage.Path
		if path == "" {
			var err error
			if path, err = store.DefaultDBPath(); err != nil {
				return nil, nil, "", fmt.Errorf("resolve db path: %w", err)
			}
		}
		db, err := store.Open(path)
		if err != nil {
			return nil, nil, "", fmt.Errorf("open database: %w", err)
		}
		return db, db, path, nil
	}
}

// local runs commands directly on an engine.
type local struct {
	eng    *engine.Engine
	closer io.Closer
}

func (l *local) State(context.Context) (snapshot.View, error) {
	return l.eng.View(), nil
}

func (l *local) Tasks(_ context.Context, label string) ([]snapshot.TaskRecord, error) {
	return tasks.RecordList(l.eng.Tasks(label)), nil
}

func (l *local) CreateTask(ctx context.Context, in snapshot.TaskInput) (snapshot.TaskRecord, error) {
	t, err := tasks.FromInput(in)
	if err != nil {
		return snapshot.TaskRecord{}, err
	}
	if err := l.eng.CreateTask(ctx, t); err != nil {
		return snapshot.TaskRecord{}, err
	}
	entry, _ := l.eng.Task(strings.TrimSpace(t.Name))
	return entry.Record(), nil
}

func (l *local) UpdateTask(ctx context.Context, name string, in snapshot.TaskPatch) (snapshot.TaskRecord, error) {
	p, err := tasks.PatchFrom(in)
	if err != nil {
		return snapshot.TaskRecord{}, err
	}
	entry, err := l.eng.UpdateTask(ctx, name, p)
	return entry.Record(), err
}

func (l *local) DeleteTask(ctx context.Context, name string) error {
	return l.eng.DeleteTask(ctx, name)
}

func (l *local) Toggle(ctx context.Context, name string, done bool) (snapshot.TaskRecord, error) {
	entry, err := l.eng.Toggle(ctx, name, done)
	return entry.Record(), err
}

func (l *local) Decay(ctx context.Context) (snapshot.View, error) {
	return l.after(l.eng.ApplyDecay(ctx))
}

func (l *local) Reset(ctx context.Context) (snapshot.View, error) {
	return l.after(l.eng.ManualReset(ctx))
}

func (l *local) RestoreDefaults(ctx context.Context) (snapshot.View, error) {
	return l.after(l.eng.RestoreDefaults(ctx))
}

func (l *local) after(err error) (snapshot.View, error) {
	if err != nil {
		return snapshot.View{}, err
	}
	return l.eng.View(), nil
}

// Close saves the engine and releases the store.
func (l *local) Close(ctx context.Context) error {
	err := l.eng.Close(ctx)
	if cerr := l.closer.Close(); err == nil {
		err = cerr
	}
	return err
}
