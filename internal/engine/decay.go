package engine

// Maintenance operations: passive decay and the daily completion reset.
//
// Decay:
//   - Linear: value += rate * elapsedHours, per metric with a non-zero rate
//   - One elapsed window per call, shared by every metric
//   - Clamped to [0, 100]; a clock that moved backwards applies nothing
//   - Rates come from the defaults profile and are not persisted
//
// Daily reset:
//   - Due at resetHour:00 local on the day after the last reset
//   - Scheduled resets clear completion state without touching metrics
//   - ManualReset reverses every applied effect first

import (
	"context"
	"fmt"

	"github.com/Ting2004/katachi/internal/tasks"
)

// ApplyDecay decays the metrics up to the current time and saves.
func (e *Engine) ApplyDecay(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.metrics.ApplyDecay(e.now())
	return e.persistLocked(ctx, "decay")
}

// CheckDailyReset clears completion state if the reset boundary has passed.
// It saves and reports true only when the reset ran.
func (e *Engine) CheckDailyReset(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.catalog.ResetCompletion(e.now(), false) {
		return false, nil
	}
	e.inst.reset(ctx, "scheduled")
	e.logger.Info("daily task reset", "date", e.catalog.LastReset().String())
	return true, e.persistLocked(ctx, "reset")
}

// ManualReset reverses the applied effect of every completed task, then
// clears all completion state regardless of the boundary.
func (e *Engine) ManualReset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, entry := range e.catalog.List() {
		e.shiftLocked(entry, tasks.Entry{})
	}
	e.catalog.ResetCompletion(e.now(), true)
	e.inst.reset(ctx, "manual")
	e.logger.Info("manual task reset")
	return e.persistLocked(ctx, "reset")
}

// RestoreDefaults replaces metrics, decay rates and the task set with the
// defaults profile. Decay up to now is applied first so the restored values
// start a fresh window.
func (e *Engine) RestoreDefaults(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.catalog.ResetEntries(e.defaults.Tasks); err != nil {
		return fmt.Errorf("restore defaults: %w", err)
	}
	e.metrics.ApplyDecay(e.now())
	e.metrics.SetAll(e.defaults.Metrics)
	e.metrics.SetDecayRates(e.defaults.DecayRates)
	e.logger.Info("restored defaults", "tasks", e.catalog.Len())
	return e.persistLocked(ctx, "restore")
}

// CatchUp runs the maintenance a host owes after being offline: decay up to
// now and an overdue daily reset, followed by a single save.
func (e *Engine) CatchUp(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.metrics.ApplyDecay(now)
	if e.catalog.ResetCompletion(now, false) {
		e.inst.reset(ctx, "scheduled")
		e.logger.Info("daily task reset", "date", e.catalog.LastReset().String())
	}
	return e.persistLocked(ctx, "catch-up")
}
