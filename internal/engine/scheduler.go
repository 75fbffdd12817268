package engine

import (
	"context"
	"time"
)

// Schedule sets the interval of each background job. A zero interval disables that job.
type Schedule struct {
	Decay time.Duration
	Save  time.Duration
	Reset time.Duration
}

// DefaultSchedule decays every 10s, saves every 10m and checks the daily reset every minute.
func DefaultSchedule() Schedule {
	return Schedule{
		Decay: 10 * time.Second,
		Save:  10 * time.Minute,
		Reset: time.Minute,
	}
}

// Start launches the background jobs. Each tick takes the engine lock like any
// other operation. Call Stop or Close to end them.
func (e *Engine) Start(s Schedule) {
	e.every(s.Decay, "decay", e.ApplyDecay)
	e.every(s.Save, "save", e.Save)
	e.every(s.Reset, "reset", func(ctx context.Context) error {
		_, err := e.CheckDailyReset(ctx)
		return err
	})
}

func (e *Engine) every(interval time.Duration, job string, fn func(context.Context) error) {
	if interval <= 0 {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := fn(context.Background()); err != nil {
					e.logger.Warn("scheduled job failed", "job", job, "err", err)
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the background jobs and waits for a running tick to finish.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

// Close stops the background jobs and performs a final save.
func (e *Engine) Close(ctx context.Context) error {
	e.Stop()
	defer e.inst.close()
	return e.Save(ctx)
}
