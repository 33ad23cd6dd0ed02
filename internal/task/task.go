package task

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/session"
)

// Task is a single unit of work with its own retry, guard and hook policy.
// Configure it with the chainable setters before handing it to a target.
type Task struct {
	name             string
	fn               Func
	retries          int
	delay            time.Duration
	guard            Guard
	onError          ErrorHook
	finally          Hook
	doNotFailOnError bool
	noLog            bool
}

// New creates a task running fn.
func New(name string, fn Func) *Task {
	return &Task{name: name, fn: fn}
}

// Retry allows count additional attempts after the first one, waiting delay
// between attempts.
func (t *Task) Retry(count int, delay time.Duration) *Task {
	if count < 0 {
		count = 0
	}
	t.retries = count
	t.delay = delay
	return t
}

// When sets the guard.
func (t *Task) When(g Guard) *Task {
	t.guard = g
	return t
}

// OnError sets the hook invoked once all attempts have failed.
func (t *Task) OnError(h ErrorHook) *Task {
	t.onError = h
	return t
}

// Finally sets the hook that always runs after the work function.
func (t *Task) Finally(h Hook) *Task {
	t.finally = h
	return t
}

// DoNotFailOnError makes an exhausted failure non-fatal for the owning target.
func (t *Task) DoNotFailOnError() *Task {
	t.doNotFailOnError = true
	return t
}

// NoLog suppresses the task's own log records.
func (t *Task) NoLog() *Task {
	t.noLog = true
	return t
}

func (t *Task) Name() string { return t.name }

// MaxAttempts is the number of times the work function may run.
func (t *Task) MaxAttempts() int { return t.retries + 1 }

// Execute runs the task according to its policy.
func (t *Task) Execute(ctx context.Context, sess *session.Session) (Outcome, error) {
	ctx, logger := ctxlog.With(ctx, "task", t.name)

	if err := ctx.Err(); err != nil {
		return OutcomeFailed, &TaskError{Task: t.name, Err: err}
	}

	if t.guard != nil {
		ok, err := evalGuard(ctx, sess, t.guard)
		if err != nil {
			return OutcomeFailed, &TaskError{Task: t.name, Err: fmt.Errorf("evaluating guard: %w", err)}
		}
		if !ok {
			if !t.noLog {
				logger.Info("Task skipped, guard is false.")
			}
			return OutcomeSkipped, nil
		}
	}

	attempts, err := t.attempt(ctx, sess)

	outcome := OutcomeSucceeded
	if err != nil {
		if t.onError != nil {
			runErrorHook(ctx, sess, t.onError, err)
		}
		if t.doNotFailOnError {
			if !t.noLog {
				logger.Warn("Task failed, continuing.", "attempts", attempts, "error", err)
			}
			outcome, err = OutcomeTolerated, nil
		} else {
			outcome, err = OutcomeFailed, &TaskError{Task: t.name, Attempts: attempts, Err: err}
		}
	}

	if t.finally != nil {
		runHook(ctx, sess, t.finally)
	}
	return outcome, err
}

// attempt drives the work function through the retry policy and returns the
// number of attempts made along with the final error.
func (t *Task) attempt(ctx context.Context, sess *session.Session) (int, error) {
	logger := ctxlog.FromContext(ctx)
	maxAttempts := t.MaxAttempts()
	delay := t.delay
	backoff := retry.WithMaxRetries(uint64(t.retries), retry.BackoffFunc(func() (time.Duration, bool) {
		return delay, false
	}))

	attempts := 0
	var lastErr error
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		start := time.Now()
		err := call(ctx, sess, t.fn)
		if !t.noLog {
			attrs := []any{"attempt", attempts, "maxAttempts", maxAttempts, "duration", time.Since(start)}
			if err != nil {
				logger.Warn("Task attempt.", append(attrs, "status", "failed", "error", err)...)
			} else {
				logger.Info("Task attempt.", append(attrs, "status", "succeeded")...)
			}
		}
		if err != nil {
			lastErr = err
			return retry.RetryableError(err)
		}
		return nil
	})
	if err == nil {
		return attempts, nil
	}
	// retry.Do reports cancellation on its own; keep the last real failure too.
	if lastErr != nil && ctx.Err() != nil && err == ctx.Err() {
		return attempts, fmt.Errorf("%w (last attempt: %w)", err, lastErr)
	}
	return attempts, err
}
