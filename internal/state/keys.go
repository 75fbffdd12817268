package state

import (
	"fmt"
	"math"
	"strings"
)

// Key names one well-being metric.
type Key string

const (
	Health    Key = "health"
	Hydration Key = "hydration"
	Sleep     Key = "sleep"
	Energy    Key = "energy"
	Relax     Key = "relax"
	Focus     Key = "focus"
	Mood      Key = "mood"
	Social    Key = "social"
)

// Keys is the closed metric enumeration in display order.
var Keys = []Key{Health, Hydration, Sleep, Energy, Relax, Focus, Mood, Social}

// Value bounds. Every stored metric lies in [Min, Max].
const (
	Min = 0.0
	Max = 100.0

	// Neutral seeds a metric that is missing from an initial snapshot.
	Neutral = 50.0
)

// Valid reports whether k belongs to the metric enumeration.
func (k Key) Valid() bool {
	switch k {
	case Health, Hydration, Sleep, Energy, Relax, Focus, Mood, Social:
		return true
	default:
		return false
	}
}

// ParseKey normalizes user input to a Key.
func ParseKey(s string) (Key, error) {
	k := Key(strings.TrimSpace(strings.ToLower(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown metric %q", s)
	}
	return k, nil
}

// Clamp bounds v to [Min, Max].
func Clamp(v float64) float64 {
	return math.Max(Min, math.Min(Max, v))
}
