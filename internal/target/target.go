// Package target defines build targets and the fluent builder used to
// assemble them.
//
// A Target is immutable once built: the builder copies every slice it hands
// over, and the accessors return copies as well.
package target

import (
	"context"
	"fmt"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/session"
	"github.com/vk/buildgrid/internal/task"
)

// Dependency is a directed edge to another target. Async dependencies run
// concurrently with each other; sync dependencies run in declared order.
type Dependency struct {
	Name  string
	Async bool
}

func (d Dependency) String() string {
	if d.Async {
		return d.Name + " (async)"
	}
	return d.Name
}

// Target is a named node owning an ordered list of steps and its dependency
// edges.
type Target struct {
	name                       string
	description                string
	hidden                     bool
	isDefault                  bool
	tolerateDependencyFailures bool
	steps                      []task.Step
	deps                       []Dependency
}

func (t *Target) Name() string        { return t.name }
func (t *Target) Description() string { return t.description }
func (t *Target) Hidden() bool        { return t.hidden }
func (t *Target) IsDefault() bool     { return t.isDefault }

// TolerateDependencyFailures reports whether the body runs even when a
// dependency failed.
func (t *Target) TolerateDependencyFailures() bool { return t.tolerateDependencyFailures }

// Steps returns a copy of the ordered step list.
func (t *Target) Steps() []task.Step {
	return append([]task.Step(nil), t.steps...)
}

// Dependencies returns a copy of all dependency edges in declared order.
func (t *Target) Dependencies() []Dependency {
	return append([]Dependency(nil), t.deps...)
}

// SyncDependencies returns the names of sync dependencies in declared order.
func (t *Target) SyncDependencies() []string {
	return t.filter(false)
}

// AsyncDependencies returns the names of async dependencies in declared order.
func (t *Target) AsyncDependencies() []string {
	return t.filter(true)
}

func (t *Target) filter(async bool) []string {
	var out []string
	for _, d := range t.deps {
		if d.Async == async {
			out = append(out, d.Name)
		}
	}
	return out
}

// Error reports the step that stopped a target's body.
type Error struct {
	Target string
	Step   string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("target '%s' failed at step '%s': %v", e.Target, e.Step, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Execute runs the target's own steps in declared order. The first failing
// step stops the body. It returns OutcomeSkipped only when the target has
// steps and every one of them was skipped by its guard, and OutcomeTolerated
// when the body completed past at least one tolerated step failure.
func (t *Target) Execute(ctx context.Context, sess *session.Session) (task.Outcome, error) {
	logger := ctxlog.FromContext(ctx)
	executed := 0
	tolerated := false
	for i, step := range t.steps {
		if err := ctx.Err(); err != nil {
			return task.OutcomeFailed, &Error{Target: t.name, Step: step.Name(), Err: err}
		}
		logger.Debug("Running step.", "step", step.Name(), "index", i)
		outcome, err := step.Execute(ctx, sess)
		if err != nil {
			return task.OutcomeFailed, &Error{Target: t.name, Step: step.Name(), Err: err}
		}
		if outcome == task.OutcomeTolerated {
			tolerated = true
		}
		if outcome != task.OutcomeSkipped {
			executed++
		}
	}
	if executed == 0 && len(t.steps) > 0 {
		return task.OutcomeSkipped, nil
	}
	if tolerated {
		return task.OutcomeTolerated, nil
	}
	return task.OutcomeSucceeded, nil
}
