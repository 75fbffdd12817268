package tasks

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Ting2004/katachi/internal/snapshot"
)

// DefaultResetHour is the local hour at which daily completion state rolls over.
const DefaultResetHour = 4

// Catalog holds task entries keyed by name. It is not safe for concurrent use;
// the engine serializes access.
type Catalog struct {
	entries   map[string]Entry
	lastReset Date
	resetHour int
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithResetHour overrides DefaultResetHour. Values outside 0-23 are ignored.
func WithResetHour(h int) Option {
	return func(c *Catalog) {
		if h >= 0 && h < 24 {
			c.resetHour = h
		}
	}
}

// NewCatalog returns an empty catalog whose last reset happened on lastReset.
func NewCatalog(lastReset Date, opts ...Option) *Catalog {
	c := &Catalog{
		entries:   make(map[string]Entry),
		lastReset: lastReset,
		resetHour: DefaultResetHour,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FromRecords rebuilds a catalog from persisted records. Any invalid record fails the whole load.
func FromRecords(recs snapshot.Tasks, lastReset Date, opts ...Option) (*Catalog, error) {
	c := NewCatalog(lastReset, opts...)
	for key, r := range recs {
		if r.Name != key {
			return nil, &ValidationError{Task: key, Field: "name", Reason: fmt.Sprintf("record is keyed %q but named %q", key, r.Name)}
		}
		e, err := FromRecord(r)
		if err != nil {
			return nil, err
		}
		c.entries[e.Task.Name] = e
	}
	return c, nil
}

// Create inserts a new, uncompleted task.
func (c *Catalog) Create(t Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	t = t.normalized()
	if _, ok := c.entries[t.Name]; ok {
		return duplicate(t.Name)
	}
	c.entries[t.Name] = Entry{Task: t}
	return nil
}

// Delete removes a task and returns the entry as it was.
func (c *Catalog) Delete(name string) (Entry, error) {
	e, ok := c.entries[name]
	if !ok {
		return Entry{}, notFound(name)
	}
	delete(c.entries, name)
	return e, nil
}

// Get returns a copy of the named entry.
func (c *Catalog) Get(name string) (Entry, bool) {
	e, ok := c.entries[name]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// List returns copies of every entry sorted by name.
func (c *Catalog) List() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Task.Name < out[j].Task.Name })
	return out
}

// ListByLabel returns the entries whose label matches, case-insensitively.
func (c *Catalog) ListByLabel(label string) []Entry {
	label = strings.TrimSpace(label)
	var out []Entry
	for _, e := range c.List() {
		if strings.EqualFold(e.Task.Label, label) {
			out = append(out, e)
		}
	}
	return out
}

// Len is the number of tasks.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Complete marks a check task done or increments a counter task.
func (c *Catalog) Complete(name string) (Entry, error) {
	e, ok := c.entries[name]
	if !ok {
		return Entry{}, notFound(name)
	}
	switch e.Task.Type {
	case Check:
		e.Completed = true
	case Counter:
		e.Count++
	}
	c.entries[name] = e
	return e.clone(), nil
}

// Uncomplete clears a check task or decrements a counter task, never below zero.
func (c *Catalog) Uncomplete(name string) (Entry, error) {
	e, ok := c.entries[name]
	if !ok {
		return Entry{}, notFound(name)
	}
	switch e.Task.Type {
	case Check:
		e.Completed = false
	case Counter:
		if e.Count > 0 {
			e.Count--
		}
	}
	c.entries[name] = e
	return e.clone(), nil
}

// Patch lists the fields of a task to change. Nil fields are left alone.
type Patch struct {
	Name   *string
	Effect Effect
	Type   *Type
	Label  *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Effect == nil && p.Type == nil && p.Label == nil
}

// Update applies p to the named task and returns the entry before and after.
// Switching check to counter carries a completion over as a count of one;
// switching counter to check marks the task completed when its count was positive.
func (c *Catalog) Update(name string, p Patch) (before, after Entry, err error) {
	cur, ok := c.entries[name]
	if !ok {
		return Entry{}, Entry{}, notFound(name)
	}
	next := cur.clone()
	if p.Name != nil {
		next.Task.Name = *p.Name
	}
	if p.Effect != nil {
		next.Task.Effect = p.Effect
	}
	if p.Label != nil {
		next.Task.Label = *p.Label
	}
	if p.Type != nil && *p.Type != cur.Task.Type {
		next.Task.Type = *p.Type
		switch *p.Type {
		case Counter:
			next.Count = 0
			if cur.Completed {
				next.Count = 1
			}
			next.Completed = false
		case Check:
			next.Completed = cur.Count > 0
			next.Count = 0
		}
	}
	if err := next.Task.Validate(); err != nil {
		return Entry{}, Entry{}, err
	}
	next.Task = next.Task.normalized()
	if next.Task.Name != name {
		if _, taken := c.entries[next.Task.Name]; taken {
			return Entry{}, Entry{}, duplicate(next.Task.Name)
		}
		delete(c.entries, name)
	}
	c.entries[next.Task.Name] = next
	return cur.clone(), next.clone(), nil
}

// LastReset is the local date of the most recent completion reset.
func (c *Catalog) LastReset() Date {
	return c.lastReset
}

// ResetHour is the local hour of the daily rollover.
func (c *Catalog) ResetHour() int {
	return c.resetHour
}

// NextReset is the instant at which the next scheduled reset becomes due, in loc.
func (c *Catalog) NextReset(loc *time.Location) time.Time {
	return c.lastReset.At(c.resetHour, loc).AddDate(0, 0, 1)
}

// ResetCompletion clears every entry's completion state when the reset hour of
// the day after the last reset has been reached, or unconditionally when manual
// is set. It reports whether the reset ran.
func (c *Catalog) ResetCompletion(now time.Time, manual bool) bool {
	if !manual && now.Before(c.NextReset(now.Location())) {
		return false
	}
	for name, e := range c.entries {
		e.Completed = false
		e.Count = 0
		c.entries[name] = e
	}
	c.lastReset = DateOf(now)
	return true
}

// ResetEntries replaces the whole catalog. Every entry is validated first; on
// error the catalog is unchanged.
func (c *Catalog) ResetEntries(entries []Entry) error {
	next := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if err := e.Task.Validate(); err != nil {
			return err
		}
		if e.Count < 0 {
			return &ValidationError{Task: e.Task.Name, Field: "count", Reason: "must not be negative"}
		}
		e = e.clone()
		e.Task = e.Task.normalized()
		if _, ok := next[e.Task.Name]; ok {
			return duplicate(e.Task.Name)
		}
		next[e.Task.Name] = e
	}
	c.entries = next
	return nil
}

// Records returns the persisted form of every entry.
func (c *Catalog) Records() snapshot.Tasks {
	out := make(snapshot.Tasks, len(c.entries))
	for name, e := range c.entries {
		out[name] = e.Record()
	}
	return out
}
