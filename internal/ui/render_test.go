package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ting2004/katachi/internal/snapshot"
)

func TestBar(t *testing.T) {
	assert.Equal(t, strings.Repeat("░", barWidth), Bar(0))
	assert.Equal(t, strings.Repeat("█", barWidth), Bar(100))
	assert.Equal(t, strings.Repeat("█", 10)+strings.Repeat("░", 10), Bar(50))
	assert.Equal(t, Bar(100), Bar(250), "out of range values clamp")
}

func TestMetricsOrder(t *testing.T) {
	out := Metrics(map[string]float64{"social": 10, "health": 90, "energy": 50})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "health"))
	assert.True(t, strings.HasPrefix(lines[1], "energy"))
	assert.True(t, strings.HasPrefix(lines[2], "social"))
}

func TestEffect(t *testing.T) {
	assert.Equal(t, "energy +10, focus -2", Effect(map[string]int{"focus": -2, "energy": 10}))
	assert.Empty(t, Effect(nil))
}

func TestTaskLine(t *testing.T) {
	line := TaskLine(snapshot.TaskRecord{Name: "water", Type: "counter", Label: "daily", Count: 3,
		Effect: map[string]int{"hydration": 5}})
	assert.Contains(t, line, IconCounter)
	assert.Contains(t, line, "×3")
	assert.Contains(t, line, "hydration +5")

	line = TaskLine(snapshot.TaskRecord{Name: "walk", Type: "check", Label: "daily", Completed: true})
	assert.Contains(t, line, IconDone)
}

func TestTasksGroupsByLabel(t *testing.T) {
	out := Tasks([]snapshot.TaskRecord{
		{Name: "b", Type: "check", Label: "work"},
		{Name: "a", Type: "check", Label: "daily"},
	})
	assert.Less(t, strings.Index(out, "daily"), strings.Index(out, "work"))
	assert.Contains(t, Tasks(nil), "no tasks")
}

func TestStatus(t *testing.T) {
	var buf bytes.Buffer
	err := Status(&buf, snapshot.View{
		Metrics:   map[string]float64{"energy": 42},
		LastReset: "2026-03-10",
		Tasks:     []snapshot.TaskRecord{{Name: "walk", Type: "check", Label: "daily"}},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "energy")
	assert.Contains(t, buf.String(), "2026-03-10")
	assert.Contains(t, buf.String(), "walk")
}
