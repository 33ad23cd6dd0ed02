package task

import (
	"context"
	"fmt"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/session"
)

// Step is one entry in a target's ordered step list.
type Step interface {
	Name() string
	Execute(ctx context.Context, sess *session.Session) (Outcome, error)
}

// Func is the work performed by a task.
type Func func(ctx context.Context, sess *session.Session) error

// Guard decides whether a task or group runs at all.
type Guard func(ctx context.Context, sess *session.Session) (bool, error)

// ErrorHook observes a failure after all attempts are exhausted.
type ErrorHook func(ctx context.Context, sess *session.Session, err error)

// Hook runs unconditionally once a task or group has finished.
type Hook func(ctx context.Context, sess *session.Session)

// Outcome is how a step finished.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	// OutcomeSkipped means the guard evaluated to false.
	OutcomeSkipped
	// OutcomeTolerated means the step failed but was marked DoNotFailOnError.
	OutcomeTolerated
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeTolerated:
		return "tolerated"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Ok reports whether the outcome lets the owning target continue.
func (o Outcome) Ok() bool {
	return o != OutcomeFailed
}

// call runs fn, converting a panic into an error.
func call(ctx context.Context, sess *session.Session, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, sess)
}

func evalGuard(ctx context.Context, sess *session.Session, g Guard) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("guard panicked: %v", r)
		}
	}()
	return g(ctx, sess)
}

func runErrorHook(ctx context.Context, sess *session.Session, h ErrorHook, cause error) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Error("On-error hook panicked.", "panic", r)
		}
	}()
	h(ctx, sess, cause)
}

func runHook(ctx context.Context, sess *session.Session, h Hook) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Error("Finally hook panicked.", "panic", r)
		}
	}()
	h(ctx, sess)
}
