package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/Ting2004/katachi/internal/defaults"
	"github.com/Ting2004/katachi/internal/snapshot"
	"github.com/Ting2004/katachi/internal/state"
	"github.com/Ting2004/katachi/internal/tasks"
)

// ErrPersist wraps every failure to write the snapshot. The in-memory change
// that preceded it is kept and the next scheduled save retries.
var ErrPersist = errors.New("persist state")

// Persister loads and saves the combined snapshot. Load returns
// snapshot.ErrNotFound when nothing has been saved yet.
type Persister interface {
	Load(ctx context.Context) (*snapshot.Snapshot, error)
	Save(ctx context.Context, snap *snapshot.Snapshot) error
}

// Options configures Open.
type Options struct {
	Persister Persister
	// Defaults seeds a fresh store and backs RestoreDefaults. Nil uses the embedded profile.
	Defaults *defaults.Profile
	// Clock returns the current local time. Nil uses time.Now.
	Clock func() time.Time
	Logger *slog.Logger
	// ResetHour is the local hour of the daily completion reset. Nil uses
	// tasks.DefaultResetHour; midnight must be asked for explicitly.
	ResetHour *int
	// Meter receives the engine's instruments. Nil uses the global provider.
	Meter metric.Meter
}

// Engine owns the metric store and the task catalog. Every operation holds
// one mutex, so both stores and the persisted snapshot change together.
type Engine struct {
	mu        sync.Mutex
	metrics   *state.Store
	catalog   *tasks.Catalog
	defaults  *defaults.Profile
	persister Persister
	now       func() time.Time
	logger    *slog.Logger
	dirty     bool
	inst      *instruments

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Open loads state through the persister. A missing snapshot, or a missing
// half of one, is seeded from the defaults and saved right away. Malformed
// persisted data is returned as an error.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Persister == nil {
		return nil, errors.New("engine: persister is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	profile := opts.Defaults
	if profile == nil {
		var err error
		if profile, err = defaults.Builtin(); err != nil {
			return nil, err
		}
	}

	snap, err := opts.Persister.Load(ctx)
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		snap = &snapshot.Snapshot{}
	case err != nil:
		return nil, fmt.Errorf("load state: %w", err)
	}

	e := &Engine{
		defaults:  profile,
		persister: opts.Persister,
		now:       clock,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
	now := clock()
	lastReset := tasks.DateOf(now)
	seeded := false

	if snap.Metrics == nil {
		e.metrics = state.New(profile.Metrics, profile.DecayRates, now, logger)
		seeded = true
	} else {
		m := *snap.Metrics
		if m.LastUpdate == 0 {
			// Absent from the file. Decaying from the epoch would zero every metric.
			logger.Warn("state has no last_update, decay starts from now")
			m.LastUpdate = snapshot.EpochSeconds(now)
		}
		if e.metrics, err = state.FromSnapshot(m, profile.DecayRates, logger); err != nil {
			return nil, fmt.Errorf("load state: %w", err)
		}
		if snap.Metrics.LastReset != "" {
			if lastReset, err = tasks.ParseDate(snap.Metrics.LastReset); err != nil {
				return nil, fmt.Errorf("load state: last_reset: %w", err)
			}
		}
	}

	var catalogOpts []tasks.Option
	if opts.ResetHour != nil {
		catalogOpts = append(catalogOpts, tasks.WithResetHour(*opts.ResetHour))
	}
	if snap.Tasks == nil {
		e.catalog = tasks.NewCatalog(lastReset, catalogOpts...)
		if err := e.catalog.ResetEntries(profile.Tasks); err != nil {
			return nil, fmt.Errorf("seed tasks: %w", err)
		}
		seeded = true
	} else {
		if e.catalog, err = tasks.FromRecords(snap.Tasks, lastReset, catalogOpts...); err != nil {
			return nil, fmt.Errorf("load state: %w", err)
		}
	}

	meter := opts.Meter
	if meter == nil {
		meter = otel.Meter("github.com/Ting2004/katachi/internal/engine")
	}
	if e.inst, err = newInstruments(meter, e); err != nil {
		return nil, fmt.Errorf("engine instruments: %w", err)
	}

	if seeded {
		logger.Info("seeded state from defaults", "tasks", e.catalog.Len())
		e.mu.Lock()
		err := e.persistLocked(ctx, "seed")
		e.mu.Unlock()
		if err != nil {
			e.inst.close()
			return nil, err
		}
	}
	return e, nil
}

// View returns a copy of the current state.
func (e *Engine) View() snapshot.View {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := snapshot.View{
		Metrics:    make(map[string]float64, len(state.Keys)),
		LastUpdate: snapshot.EpochSeconds(e.metrics.LastUpdate()),
		LastReset:  e.catalog.LastReset().String(),
		DecayRates: make(map[string]float64),
		Tasks:      tasks.RecordList(e.catalog.List()),
	}
	for k, val := range e.metrics.All() {
		v.Metrics[string(k)] = val
	}
	for k, r := range e.metrics.DecayRates() {
		v.DecayRates[string(k)] = r
	}
	return v
}

// Metrics returns a copy of the metric values.
func (e *Engine) Metrics() map[state.Key]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics.All()
}

// Task returns a copy of one entry.
func (e *Engine) Task(name string) (tasks.Entry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.Get(name)
}

// Tasks lists entries, optionally filtered by label.
func (e *Engine) Tasks(label string) []tasks.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if label == "" {
		return e.catalog.List()
	}
	return e.catalog.ListByLabel(label)
}

// Dirty reports whether the last save failed and a retry is pending.
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// Save writes the current snapshot.
func (e *Engine) Save(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persistLocked(ctx, "save")
}

func (e *Engine) snapshotLocked() *snapshot.Snapshot {
	m := e.metrics.Snapshot()
	m.LastReset = e.catalog.LastReset().String()
	return &snapshot.Snapshot{Metrics: &m, Tasks: e.catalog.Records()}
}

func (e *Engine) persistLocked(ctx context.Context, op string) error {
	if err := e.persister.Save(ctx, e.snapshotLocked()); err != nil {
		e.dirty = true
		e.inst.saveFailed(ctx, op)
		e.logger.Error("save state failed", "op", op, "err", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	e.dirty = false
	e.inst.saved(ctx, op)
	return nil
}

// shiftLocked moves the metrics from before's applied effect to after's.
// Deltas are netted per metric first so an unchanged effect is not clamped twice.
func (e *Engine) shiftLocked(before, after tasks.Entry) {
	net := make(map[state.Key]int)
	for k, d := range before.Task.Effect {
		net[k] -= d * before.Active()
	}
	for k, d := range after.Task.Effect {
		net[k] += d * after.Active()
	}
	for k, d := range net {
		if d != 0 {
			e.metrics.Update(k, float64(d))
		}
	}
}
