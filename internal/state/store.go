package state

import (
	"fmt"
	"log/slog"
	"maps"
	"math"
	"time"

	"github.com/Ting2004/katachi/internal/snapshot"
)

// Store holds the current metric values and decay rates.
type Store struct {
	values     map[Key]float64
	rates      map[Key]float64
	lastUpdate time.Time
	logger     *slog.Logger
}

// New creates a Store. Every enumerated key is present afterwards: keys missing
// from initial start at Neutral, unknown keys are dropped with a warning.
func New(initial, rates map[Key]float64, lastUpdate time.Time, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		values:     make(map[Key]float64, len(Keys)),
		lastUpdate: lastUpdate,
		logger:     logger,
	}
	for _, k := range Keys {
		s.values[k] = Neutral
	}
	s.SetAll(initial)
	s.SetDecayRates(rates)
	return s
}

// FromSnapshot rebuilds a Store from its persisted form. Unknown metric keys,
// non-finite numbers and a last_update that is not a positive epoch time are
// treated as corrupt data.
func FromSnapshot(m snapshot.Metrics, rates map[Key]float64, logger *slog.Logger) (*Store, error) {
	initial := make(map[Key]float64, len(m.Metrics))
	for name, v := range m.Metrics {
		k := Key(name)
		if !k.Valid() {
			return nil, fmt.Errorf("metrics: unknown key %q", name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("metrics: %s is not a finite number", name)
		}
		initial[k] = v
	}
	if math.IsNaN(m.LastUpdate) || math.IsInf(m.LastUpdate, 0) || m.LastUpdate <= 0 {
		return nil, fmt.Errorf("metrics: invalid last_update %v", m.LastUpdate)
	}
	return New(initial, rates, snapshot.FromEpochSeconds(m.LastUpdate), logger), nil
}

// All returns a copy of every metric value.
func (s *Store) All() map[Key]float64 {
	return maps.Clone(s.values)
}

// Get returns the value for k, or false if k is not a metric.
func (s *Store) Get(k Key) (float64, bool) {
	v, ok := s.values[k]
	return v, ok
}

// Update adds delta to k and clamps. Unknown keys are a logged no-op.
func (s *Store) Update(k Key, delta float64) bool {
	cur, ok := s.values[k]
	if !ok {
		s.logger.Warn("update of unknown metric ignored", "metric", string(k), "delta", delta)
		return false
	}
	s.values[k] = Clamp(cur + delta)
	return true
}

// Set assigns a clamped value to k. Unknown keys are a logged no-op.
func (s *Store) Set(k Key, v float64) bool {
	if _, ok := s.values[k]; !ok {
		s.logger.Warn("set of unknown metric ignored", "metric", string(k), "value", v)
		return false
	}
	s.values[k] = Clamp(v)
	return true
}

// SetAll overwrites the metrics present in m. Metrics absent from m keep their value.
func (s *Store) SetAll(m map[Key]float64) {
	for k, v := range m {
		s.Set(k, v)
	}
}

// SetDecayRates replaces the decay map. Zero rates and unknown keys are dropped.
func (s *Store) SetDecayRates(rates map[Key]float64) {
	s.rates = make(map[Key]float64, len(rates))
	for k, r := range rates {
		if !k.Valid() {
			s.logger.Warn("decay rate for unknown metric ignored", "metric", string(k))
			continue
		}
		if r == 0 {
			continue
		}
		s.rates[k] = r
	}
}

// DecayRates returns a copy of the decay map.
func (s *Store) DecayRates() map[Key]float64 {
	return maps.Clone(s.rates)
}

// LastUpdate is the time decay was last applied.
func (s *Store) LastUpdate() time.Time {
	return s.lastUpdate
}

// ApplyDecay moves every decaying metric by rate*elapsedHours and advances lastUpdate to now.
func (s *Store) ApplyDecay(now time.Time) {
	hours := now.Sub(s.lastUpdate).Hours()
	if hours > 0 {
		for k, rate := range s.rates {
			if cur, ok := s.values[k]; ok {
				s.values[k] = Clamp(cur + rate*hours)
			}
		}
	}
	s.lastUpdate = now
}

// Snapshot returns the persisted form. LastReset is owned by the task catalog
// and is filled in by the caller.
func (s *Store) Snapshot() snapshot.Metrics {
	out := snapshot.Metrics{
		Metrics:    make(map[string]float64, len(s.values)),
		LastUpdate: snapshot.EpochSeconds(s.lastUpdate),
	}
	for k, v := range s.values {
		out.Metrics[string(k)] = v
	}
	return out
}
