package task

import (
	"errors"
	"fmt"
)

// TaskError is returned when a task exhausted its attempts and was not
// allowed to fail silently.
type TaskError struct {
	Task     string
	Attempts int
	Err      error
}

func (e *TaskError) Error() string {
	if e.Attempts == 0 {
		return fmt.Sprintf("task '%s' failed: %v", e.Task, e.Err)
	}
	return fmt.Sprintf("task '%s' failed after %d attempt(s): %v", e.Task, e.Attempts, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// GroupError collects the failures of every member of a group.
type GroupError struct {
	Group    string
	Failures []error
}

func (e *GroupError) Error() string {
	return fmt.Sprintf("group '%s': %d member(s) failed: %v", e.Group, len(e.Failures), errors.Join(e.Failures...))
}

func (e *GroupError) Unwrap() []error {
	return e.Failures
}
