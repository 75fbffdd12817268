package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type instruments struct {
	transitions  metric.Int64Counter
	resets       metric.Int64Counter
	saves        metric.Int64Counter
	saveFailures metric.Int64Counter
	registration metric.Registration
}

func newInstruments(m metric.Meter, e *Engine) (*instruments, error) {
	inst := &instruments{}
	var err error
	if inst.transitions, err = m.Int64Counter("katachi.task.transitions",
		metric.WithDescription("Task completion state changes")); err != nil {
		return nil, err
	}
	if inst.resets, err = m.Int64Counter("katachi.task.resets",
		metric.WithDescription("Completion resets, scheduled and manual")); err != nil {
		return nil, err
	}
	if inst.saves, err = m.Int64Counter("katachi.store.saves"); err != nil {
		return nil, err
	}
	if inst.saveFailures, err = m.Int64Counter("katachi.store.save_failures"); err != nil {
		return nil, err
	}
	gauge, err := m.Float64ObservableGauge("katachi.metric.value",
		metric.WithDescription("Current well-being metric values"))
	if err != nil {
		return nil, err
	}
	inst.registration, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for k, v := range e.Metrics() {
			o.ObserveFloat64(gauge, v, metric.WithAttributes(attribute.String("metric", string(k))))
		}
		return nil
	}, gauge)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func (i *instruments) transition(ctx context.Context, op string) {
	i.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (i *instruments) reset(ctx context.Context, kind string) {
	i.resets.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (i *instruments) saved(ctx context.Context, op string) {
	i.saves.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (i *instruments) saveFailed(ctx context.Context, op string) {
	i.saveFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (i *instruments) close() {
	if i.registration != nil {
		_ = i.registration.Unregister()
	}
}
