package engine

import (
	"context"
	"fmt"

	"github.com/Ting2004/katachi/internal/tasks"
)

// CreateTask adds a new, uncompleted task. Metrics do not change.
func (e *Engine) CreateTask(ctx context.Context, t tasks.Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.catalog.Create(t); err != nil {
		return err
	}
	return e.persistLocked(ctx, "create")
}

// DeleteTask removes a task and reverses whatever its completion state had applied.
func (e *Engine) DeleteTask(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed, err := e.catalog.Delete(name)
	if err != nil {
		return err
	}
	e.shiftLocked(removed, tasks.Entry{})
	return e.persistLocked(ctx, "delete")
}

// Complete marks a check task done or counts one more repetition of a counter task.
func (e *Engine) Complete(ctx context.Context, name string) (tasks.Entry, error) {
	return e.Toggle(ctx, name, true)
}

// Uncomplete undoes one completion.
func (e *Engine) Uncomplete(ctx context.Context, name string) (tasks.Entry, error) {
	return e.Toggle(ctx, name, false)
}

// Toggle completes (done) or uncompletes a task and moves the metrics by the
// task's effect times the change in how often it is applied. A transition
// that changes nothing, like uncompleting a counter at zero, leaves the
// metrics alone.
func (e *Engine) Toggle(ctx context.Context, name string, done bool) (tasks.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	before, ok := e.catalog.Get(name)
	if !ok {
		return tasks.Entry{}, notFound(name)
	}
	var (
		after tasks.Entry
		err   error
		op    = "uncomplete"
	)
	if done {
		op = "complete"
		after, err = e.catalog.Complete(name)
	} else {
		after, err = e.catalog.Uncomplete(name)
	}
	if err != nil {
		return tasks.Entry{}, err
	}
	e.shiftLocked(before, after)
	if after.Active() != before.Active() {
		e.inst.transition(ctx, op)
	}
	return after, e.persistLocked(ctx, op)
}

// UpdateTask changes a task's definition. The old definition's applied effect
// is reversed and the new one's applied.
func (e *Engine) UpdateTask(ctx context.Context, name string, p tasks.Patch) (tasks.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	before, after, err := e.catalog.Update(name, p)
	if err != nil {
		return tasks.Entry{}, err
	}
	e.shiftLocked(before, after)
	return after, e.persistLocked(ctx, "update")
}

// ApplyEffect adds the named task's effect times multiplier to the metrics
// without touching its completion state.
func (e *Engine) ApplyEffect(ctx context.Context, name string, multiplier int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.catalog.Get(name)
	if !ok {
		return notFound(name)
	}
	for k, d := range entry.Task.Effect {
		e.metrics.Update(k, float64(d*multiplier))
	}
	return e.persistLocked(ctx, "apply")
}

func notFound(name string) error {
	return fmt.Errorf("%w: %q", tasks.ErrNotFound, name)
}
