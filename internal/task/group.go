package task

import (
	"context"
	"errors"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/session"
)

// Group runs an ordered list of steps as a unit under one guard and one pair
// of hooks.
type Group struct {
	name    string
	steps   []Step
	guard   Guard
	onError ErrorHook
	finally Hook
}

// NewGroup creates a group with the given members.
func NewGroup(name string, steps ...Step) *Group {
	return &Group{name: name, steps: steps}
}

// Add appends members.
func (g *Group) Add(steps ...Step) *Group {
	g.steps = append(g.steps, steps...)
	return g
}

// When sets the group guard.
func (g *Group) When(guard Guard) *Group {
	g.guard = guard
	return g
}

// OnError sets the hook that fires once when any member failed.
func (g *Group) OnError(h ErrorHook) *Group {
	g.onError = h
	return g
}

// Finally sets the hook that fires once after all members.
func (g *Group) Finally(h Hook) *Group {
	g.finally = h
	return g
}

func (g *Group) Name() string { return g.name }

// Steps returns a copy of the member list.
func (g *Group) Steps() []Step {
	return append([]Step(nil), g.steps...)
}

// Execute runs every member in order without short-circuiting.
func (g *Group) Execute(ctx context.Context, sess *session.Session) (Outcome, error) {
	ctx, logger := ctxlog.With(ctx, "group", g.name)

	if g.guard != nil {
		ok, err := evalGuard(ctx, sess, g.guard)
		if err != nil {
			return OutcomeFailed, &GroupError{Group: g.name, Failures: []error{err}}
		}
		if !ok {
			logger.Info("Group skipped, guard is false.")
			return OutcomeSkipped, nil
		}
	}

	var failures []error
	ran, tolerated := 0, false
	for _, step := range g.steps {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}
		outcome, err := step.Execute(ctx, sess)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		switch outcome {
		case OutcomeSkipped:
		case OutcomeTolerated:
			tolerated = true
			ran++
		default:
			ran++
		}
	}

	var result error
	outcome := OutcomeSucceeded
	switch {
	case len(failures) > 0:
		outcome = OutcomeFailed
		result = &GroupError{Group: g.name, Failures: failures}
		if g.onError != nil {
			runErrorHook(ctx, sess, g.onError, errors.Join(failures...))
		}
	case tolerated:
		outcome = OutcomeTolerated
	case ran == 0 && len(g.steps) > 0:
		outcome = OutcomeSkipped
	}

	if g.finally != nil {
		runHook(ctx, sess, g.finally)
	}
	return outcome, result
}
