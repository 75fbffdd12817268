// Package ui renders state for the terminal.
package ui

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Ting2004/katachi/internal/snapshot"
	"github.com/Ting2004/katachi/internal/state"
)

const barWidth = 20

// Bar draws v (0-100) as a fixed-width bar.
func Bar(v float64) string {
	filled := int(math.Round(state.Clamp(v) / state.Max * barWidth))
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

// Metrics renders one line per metric in display order.
func Metrics(m map[string]float64) string {
	var b strings.Builder
	for _, k := range state.Keys {
		v, ok := m[string(k)]
		if !ok {
			continue
		}
		style := Level(v)
		fmt.Fprintf(&b, "%-10s %s %s\n", string(k), style.Render(Bar(v)), style.Render(fmt.Sprintf("%5.1f", v)))
	}
	return b.String()
}

// TaskLine renders one task with its completion marker and effect.
func TaskLine(r snapshot.TaskRecord) string {
	mark := IconOpen
	if r.Type == "counter" {
		mark = IconCounter
	} else if r.Completed {
		mark = IconDone
	}
	name := r.Name
	if r.Completed || r.Count > 0 {
		name = Good.Render(name)
	}
	line := fmt.Sprintf("%s %s", mark, name)
	if r.Type == "counter" {
		line += " " + Key.Render(fmt.Sprintf("×%d", r.Count))
	}
	return line + " " + Muted.Render(fmt.Sprintf("[%s] %s", r.Label, Effect(r.Effect)))
}

// Effect renders deltas as "energy +10, focus -2", sorted by metric.
func Effect(eff map[string]int) string {
	keys := make([]string, 0, len(eff))
	for k := range eff {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %+d", k, eff[k]))
	}
	return strings.Join(parts, ", ")
}

// Tasks renders records grouped by label, labels in alphabetical order.
func Tasks(recs []snapshot.TaskRecord) string {
	if len(recs) == 0 {
		return Muted.Render("no tasks") + "\n"
	}
	groups := make(map[string][]snapshot.TaskRecord)
	var labels []string
	for _, r := range recs {
		if _, ok := groups[r.Label]; !ok {
			labels = append(labels, r.Label)
		}
		groups[r.Label] = append(groups[r.Label], r)
	}
	sort.Strings(labels)

	var b strings.Builder
	for _, l := range labels {
		b.WriteString(H2.Render(l) + "\n")
		for _, r := range groups[l] {
			b.WriteString("  " + TaskLine(r) + "\n")
		}
	}
	return b.String()
}

// Status writes the full dashboard for v.
func Status(w io.Writer, v snapshot.View) error {
	updated := snapshot.FromEpochSeconds(v.LastUpdate).Format(time.DateTime)
	header := Heading("katachi") + "  " + Muted.Render("updated "+updated+" · reset "+v.LastReset)
	_, err := fmt.Fprintf(w, "%s\n%s\n%s", header,
		Panel.Render(strings.TrimRight(Metrics(v.Metrics), "\n")), Tasks(v.Tasks))
	return err
}
