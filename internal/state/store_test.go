package state

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ting2004/katachi/internal/snapshot"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(initial, rates map[Key]float64) *Store {
	return New(initial, rates, t0, quietLogger())
}

func TestNewSeedsEveryKey(t *testing.T) {
	s := newTestStore(map[Key]float64{Energy: 80}, nil)

	all := s.All()
	assert.Len(t, all, len(Keys))
	assert.Equal(t, 80.0, all[Energy])
	assert.Equal(t, Neutral, all[Mood])
}

func TestUpdateClamps(t *testing.T) {
	s := newTestStore(map[Key]float64{Energy: 95, Focus: 3}, nil)

	require.True(t, s.Update(Energy, 20))
	require.True(t, s.Update(Focus, -10))

	v, _ := s.Get(Energy)
	assert.Equal(t, 100.0, v)
	v, _ = s.Get(Focus)
	assert.Equal(t, 0.0, v)
}

func TestSetClamps(t *testing.T) {
	s := newTestStore(nil, nil)

	s.Set(Sleep, 140)
	s.Set(Mood, -3)

	v, _ := s.Get(Sleep)
	assert.Equal(t, 100.0, v)
	v, _ = s.Get(Mood)
	assert.Equal(t, 0.0, v)
}

func TestRandomSequenceStaysInBounds(t *testing.T) {
	s := newTestStore(nil, nil)
	deltas := []float64{35, -120, 240, -7.5, 99, -0.25, 1e6, -1e6, 42}
	for i, d := range deltas {
		k := Keys[i%len(Keys)]
		if i%2 == 0 {
			s.Update(k, d)
		} else {
			s.Set(k, d)
		}
		for key, v := range s.All() {
			assert.GreaterOrEqual(t, v, Min, "metric %s", key)
			assert.LessOrEqual(t, v, Max, "metric %s", key)
		}
	}
}

func TestUnknownKeyIsNoOp(t *testing.T) {
	s := newTestStore(nil, nil)
	before := s.All()

	assert.False(t, s.Update(Key("karma"), 10))
	assert.False(t, s.Set(Key("karma"), 10))

	_, ok := s.Get(Key("karma"))
	assert.False(t, ok)
	assert.Equal(t, before, s.All())
}

func TestApplyDecayLinear(t *testing.T) {
	s := newTestStore(map[Key]float64{Energy: 50}, map[Key]float64{Energy: -1})

	s.ApplyDecay(t0.Add(2 * time.Hour))

	v, _ := s.Get(Energy)
	assert.Equal(t, 48.0, v)
	assert.Equal(t, t0.Add(2*time.Hour), s.LastUpdate())
}

func TestApplyDecaySharesOneWindow(t *testing.T) {
	s := newTestStore(
		map[Key]float64{Energy: 50, Hydration: 50, Health: 50},
		map[Key]float64{Energy: -2, Hydration: -4},
	)

	s.ApplyDecay(t0.Add(90 * time.Minute))

	all := s.All()
	assert.Equal(t, 47.0, all[Energy])
	assert.Equal(t, 44.0, all[Hydration])
	assert.Equal(t, 50.0, all[Health], "metrics without a rate do not move")

	// The second call only covers the time since the first.
	s.ApplyDecay(t0.Add(120 * time.Minute))
	assert.Equal(t, 46.0, s.All()[Energy])
}

func TestApplyDecayClamps(t *testing.T) {
	s := newTestStore(map[Key]float64{Sleep: 1, Mood: 99}, map[Key]float64{Sleep: -5, Mood: 5})

	s.ApplyDecay(t0.Add(3 * time.Hour))

	all := s.All()
	assert.Equal(t, 0.0, all[Sleep])
	assert.Equal(t, 100.0, all[Mood])
}

func TestApplyDecayBackwardsClock(t *testing.T) {
	s := newTestStore(map[Key]float64{Energy: 50}, map[Key]float64{Energy: -1})

	earlier := t0.Add(-5 * time.Hour)
	s.ApplyDecay(earlier)

	v, _ := s.Get(Energy)
	assert.Equal(t, 50.0, v)
	assert.Equal(t, earlier, s.LastUpdate())
}

func TestSetDecayRatesDropsZeroAndUnknown(t *testing.T) {
	s := newTestStore(nil, nil)
	s.SetDecayRates(map[Key]float64{Energy: -1, Focus: 0, Key("karma"): -3})

	assert.Equal(t, map[Key]float64{Energy: -1}, s.DecayRates())
}

func TestSetAllKeepsMissing(t *testing.T) {
	s := newTestStore(map[Key]float64{Energy: 10, Focus: 20}, nil)
	s.SetAll(map[Key]float64{Energy: 70})

	all := s.All()
	assert.Equal(t, 70.0, all[Energy])
	assert.Equal(t, 20.0, all[Focus])
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(map[Key]float64{Energy: 61.5, Social: 12}, map[Key]float64{Energy: -1})

	snap := s.Snapshot()
	assert.Equal(t, float64(t0.Unix()), snap.LastUpdate)

	back, err := FromSnapshot(snap, s.DecayRates(), quietLogger())
	require.NoError(t, err)
	assert.Equal(t, s.All(), back.All())
	assert.True(t, back.LastUpdate().Equal(t0))
}

func TestFromSnapshotRejectsCorruptData(t *testing.T) {
	cases := map[string]snapshot.Metrics{
		"unknown key": {Metrics: map[string]float64{"karma": 1}, LastUpdate: 1},
		"nan value":   {Metrics: map[string]float64{"energy": math.NaN()}, LastUpdate: 1},
		"inf update":  {Metrics: map[string]float64{"energy": 1}, LastUpdate: math.Inf(1)},
		"negative ts": {Metrics: map[string]float64{"energy": 1}, LastUpdate: -4},
		"missing ts":  {Metrics: map[string]float64{"energy": 1}},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromSnapshot(m, nil, quietLogger())
			assert.Error(t, err)
		})
	}
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey(" Energy ")
	require.NoError(t, err)
	assert.Equal(t, Energy, k)

	_, err = ParseKey("karma")
	assert.Error(t, err)
}
