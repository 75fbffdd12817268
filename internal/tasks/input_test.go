package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ting2004/katachi/internal/snapshot"
	"github.com/Ting2004/katachi/internal/state"
)

func TestFromInput(t *testing.T) {
	task, err := FromInput(snapshot.TaskInput{Name: "walk", Effect: map[string]int{"energy": 10}, Type: "check"})
	require.NoError(t, err)
	assert.Equal(t, Effect{state.Energy: 10}, task.Effect)
	assert.Equal(t, Check, task.Type)

	_, err = FromInput(snapshot.TaskInput{Name: "walk", Effect: map[string]int{"karma": 1}, Type: "check"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestPatchFrom(t *testing.T) {
	typ := " Counter "
	p, err := PatchFrom(snapshot.TaskPatch{Type: &typ, Effect: map[string]int{"focus": 2}})
	require.NoError(t, err)
	require.NotNil(t, p.Type)
	assert.Equal(t, Counter, *p.Type)
	assert.Equal(t, Effect{state.Focus: 2}, p.Effect)
	assert.Nil(t, p.Name)

	p, err = PatchFrom(snapshot.TaskPatch{})
	require.NoError(t, err)
	assert.True(t, p.Empty())

	bad := "toggle"
	_, err = PatchFrom(snapshot.TaskPatch{Type: &bad})
	assert.ErrorIs(t, err, ErrInvalid)
}
