// Package tasks owns task definitions and their per-day completion state.
package tasks

import (
	"errors"
	"maps"
	"sort"
	"strconv"
	"strings"

	"github.com/Ting2004/katachi/internal/snapshot"
	"github.com/Ting2004/katachi/internal/state"
)

// Type selects how completion is tracked.
type Type string

const (
	Check   Type = "check"
	Counter Type = "counter"
)

func (t Type) Valid() bool {
	return t == Check || t == Counter
}

// ParseType normalizes user input to a Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.TrimSpace(strings.ToLower(s)))
	if !t.Valid() {
		return "", &ValidationError{Field: "type", Reason: "must be check or counter, got " + strconv.Quote(s)}
	}
	return t, nil
}

// Conventional display categories. Labels are free-form.
const (
	LabelDaily  = "daily"
	LabelWork   = "work"
	LabelSocial = "social"
	LabelCustom = "custom"
)

// Effect maps metrics to the signed delta applied per completion.
type Effect map[state.Key]int

// ParseEffect converts raw keys to an Effect, rejecting any key outside the metric set.
func ParseEffect(raw map[string]int) (Effect, error) {
	eff := make(Effect, len(raw))
	for name, delta := range raw {
		k := state.Key(name)
		if !k.Valid() {
			return nil, &ValidationError{Field: "effect", Reason: "unknown metric " + strconv.Quote(name)}
		}
		eff[k] = delta
	}
	return eff, nil
}

// Validate reports the first key outside the metric set.
func (e Effect) Validate() error {
	for k := range e {
		if !k.Valid() {
			return &ValidationError{Field: "effect", Reason: "unknown metric " + strconv.Quote(string(k))}
		}
	}
	return nil
}

// Keys returns the effect's metrics in enumeration order.
func (e Effect) Keys() []state.Key {
	var out []state.Key
	for _, k := range state.Keys {
		if _, ok := e[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func (e Effect) raw() map[string]int {
	out := make(map[string]int, len(e))
	for k, v := range e {
		out[string(k)] = v
	}
	return out
}

// Task is a task definition.
type Task struct {
	Name   string
	Effect Effect
	Type   Type
	Label  string
}

// Validate checks a definition. An empty label is accepted and normalized by the catalog.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if !t.Type.Valid() {
		return &ValidationError{Task: t.Name, Field: "type", Reason: "must be check or counter, got " + strconv.Quote(string(t.Type))}
	}
	if err := t.Effect.Validate(); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			ve.Task = t.Name
		}
		return err
	}
	return nil
}

func (t Task) clone() Task {
	t.Effect = maps.Clone(t.Effect)
	if t.Effect == nil {
		t.Effect = Effect{}
	}
	return t
}

func (t Task) normalized() Task {
	t = t.clone()
	t.Name = strings.TrimSpace(t.Name)
	t.Label = strings.TrimSpace(t.Label)
	if t.Label == "" {
		t.Label = LabelCustom
	}
	return t
}

// Entry is a catalog row: a definition plus its completion state.
type Entry struct {
	Task      Task
	Completed bool
	Count     int
}

// Active is how many times the entry's effect is currently applied to the metrics.
func (e Entry) Active() int {
	switch e.Task.Type {
	case Check:
		if e.Completed {
			return 1
		}
		return 0
	case Counter:
		return e.Count
	default:
		return 0
	}
}

// Record returns the persisted form.
func (e Entry) Record() snapshot.TaskRecord {
	return snapshot.TaskRecord{
		Name:      e.Task.Name,
		Effect:    e.Task.Effect.raw(),
		Type:      string(e.Task.Type),
		Label:     e.Task.Label,
		Completed: e.Completed,
		Count:     e.Count,
	}
}

func (e Entry) clone() Entry {
	e.Task = e.Task.clone()
	return e
}

// FromRecord validates a persisted record and returns the entry it describes.
func FromRecord(r snapshot.TaskRecord) (Entry, error) {
	eff, err := ParseEffect(r.Effect)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			ve.Task = r.Name
		}
		return Entry{}, err
	}
	e := Entry{
		Task:      Task{Name: r.Name, Effect: eff, Type: Type(r.Type), Label: r.Label},
		Completed: r.Completed,
		Count:     r.Count,
	}
	if err := e.Task.Validate(); err != nil {
		return Entry{}, err
	}
	if e.Count < 0 {
		return Entry{}, &ValidationError{Task: r.Name, Field: "count", Reason: "must not be negative"}
	}
	e.Task = e.Task.normalized()
	return e, nil
}

// Records converts entries to persisted form keyed by name.
func Records(entries []Entry) snapshot.Tasks {
	out := make(snapshot.Tasks, len(entries))
	for _, e := range entries {
		out[e.Task.Name] = e.Record()
	}
	return out
}

// RecordList converts entries to a name-sorted record slice.
func RecordList(entries []Entry) []snapshot.TaskRecord {
	out := make([]snapshot.TaskRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Record())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
