// Package snapshot defines the persisted and wire shapes shared by the
// storage backends, the engine, and the HTTP API.
package snapshot

import (
	"errors"
	"math"
	"time"
)

// ErrNotFound is returned by a Persister when no snapshot has been saved yet.
var ErrNotFound = errors.New("snapshot not found")

// Metrics is the persisted metric record.
type Metrics struct {
	Metrics    map[string]float64 `json:"metrics"`
	LastUpdate float64            `json:"last_update"`
	// LastReset is the local calendar date (YYYY-MM-DD) of the last completion reset.
	LastReset string `json:"last_reset,omitempty"`
}

// TaskRecord is one row of the persisted task catalog.
type TaskRecord struct {
	Name      string         `json:"name"`
	Effect    map[string]int `json:"effect"`
	Type      string         `json:"type"`
	Label     string         `json:"label"`
	Completed bool           `json:"completed"`
	Count     int            `json:"count"`
}

// Tasks maps task name to record.
type Tasks map[string]TaskRecord

// Snapshot is the combined state handed to and from a Persister.
// A nil Metrics or nil Tasks means that half has never been saved.
type Snapshot struct {
	Metrics *Metrics
	Tasks   Tasks
}

// View is the read model served to hosts.
type View struct {
	Metrics    map[string]float64 `json:"metrics"`
	LastUpdate float64            `json:"last_update"`
	LastReset  string             `json:"last_reset"`
	DecayRates map[string]float64 `json:"decay_rates,omitempty"`
	Tasks      []TaskRecord       `json:"tasks"`
}

// EpochSeconds converts t to fractional Unix seconds, the unit of last_update.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FromEpochSeconds is the inverse of EpochSeconds.
func FromEpochSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9)))
}
