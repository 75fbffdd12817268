package tasks

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an operation names a task the catalog does not hold.
	ErrNotFound = errors.New("task not found")
	// ErrDuplicate is returned when a task name is already taken.
	ErrDuplicate = errors.New("task already exists")
	// ErrInvalid is matched by every ValidationError.
	ErrInvalid = errors.New("invalid task")
)

// ValidationError describes a task definition that was rejected before any state changed.
type ValidationError struct {
	Task   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("invalid task: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid task %q: %s: %s", e.Task, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

func notFound(name string) error {
	return fmt.Errorf("%w: %q", ErrNotFound, name)
}

func duplicate(name string) error {
	return fmt.Errorf("%w: %q", ErrDuplicate, name)
}
