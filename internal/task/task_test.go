package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildgrid/internal/session"
	"github.com/vk/buildgrid/internal/testutil"
)

func newTestContext(t *testing.T) (context.Context, *session.Session, *testutil.SafeBuffer) {
	t.Helper()
	sess, logs := testutil.NewSession(t)
	return sess.Context(context.Background()), sess, logs
}

// TestTask_RetrySucceedsOnThirdAttempt verifies that a task allowed three
// retries which fails twice and then succeeds reports success with exactly
// three attempt records in the log.
func TestTask_RetrySucceedsOnThirdAttempt(t *testing.T) {
	// Arrange
	ctx, sess, logs := newTestContext(t)
	calls := 0
	tk := New("flaky", func(context.Context, *session.Session) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}).Retry(3, time.Millisecond)

	// Act
	outcome, err := tk.Execute(ctx, sess)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, outcome)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, testutil.CountLines(logs, `msg="Task attempt."`, "task=flaky"))
	assert.Equal(t, 2, testutil.CountLines(logs, `msg="Task attempt."`, "status=failed"))
	assert.Equal(t, 1, testutil.CountLines(logs, `msg="Task attempt."`, "status=succeeded"))
}

func TestTask_ExhaustedRetries(t *testing.T) {
	// Arrange
	ctx, sess, _ := newTestContext(t)
	boom := errors.New("boom")
	var order []string
	var hookErr error
	tk := New("always-fails", func(context.Context, *session.Session) error {
		order = append(order, "work")
		return boom
	}).
		Retry(2, 0).
		OnError(func(_ context.Context, _ *session.Session, err error) {
			order = append(order, "on_error")
			hookErr = err
		}).
		Finally(func(context.Context, *session.Session) {
			order = append(order, "finally")
		})

	// Act
	outcome, err := tk.Execute(ctx, sess)

	// Assert
	assert.Equal(t, OutcomeFailed, outcome)
	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, "always-fails", taskErr.Task)
	assert.Equal(t, 3, taskErr.Attempts)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, hookErr, boom)
	assert.Equal(t, []string{"work", "work", "work", "on_error", "finally"}, order)
}

// TestTask_FalseGuardSkipsWorkAndFinally verifies that a false guard leaves
// both the work function and the finally hook untouched.
func TestTask_FalseGuardSkipsWorkAndFinally(t *testing.T) {
	ctx, sess, logs := newTestContext(t)
	guardCalls, workCalls, finallyCalls := 0, 0, 0
	tk := New("guarded", func(context.Context, *session.Session) error {
		workCalls++
		return nil
	}).
		Retry(3, 0).
		When(func(context.Context, *session.Session) (bool, error) {
			guardCalls++
			return false, nil
		}).
		Finally(func(context.Context, *session.Session) { finallyCalls++ })

	outcome, err := tk.Execute(ctx, sess)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Equal(t, 1, guardCalls)
	assert.Zero(t, workCalls)
	assert.Zero(t, finallyCalls)
	assert.Contains(t, logs.String(), "Task skipped, guard is false.")
}

func TestTask_GuardIsEvaluatedOnceAcrossRetries(t *testing.T) {
	ctx, sess, _ := newTestContext(t)
	guardCalls := 0
	tk := New("retried", func(context.Context, *session.Session) error {
		return errors.New("nope")
	}).
		Retry(4, 0).
		When(func(context.Context, *session.Session) (bool, error) {
			guardCalls++
			return true, nil
		})

	_, err := tk.Execute(ctx, sess)

	require.Error(t, err)
	assert.Equal(t, 1, guardCalls)
}

func TestTask_GuardError(t *testing.T) {
	ctx, sess, _ := newTestContext(t)
	worked := false
	tk := New("bad-guard", func(context.Context, *session.Session) error {
		worked = true
		return nil
	}).When(func(context.Context, *session.Session) (bool, error) {
		return false, errors.New("cannot evaluate")
	})

	outcome, err := tk.Execute(ctx, sess)

	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorContains(t, err, "evaluating guard: cannot evaluate")
	assert.False(t, worked)
}

func TestTask_DoNotFailOnError(t *testing.T) {
	ctx, sess, logs := newTestContext(t)
	finallyRan := false
	tk := New("optional", func(context.Context, *session.Session) error {
		return errors.New("ignored failure")
	}).
		DoNotFailOnError().
		Finally(func(context.Context, *session.Session) { finallyRan = true })

	outcome, err := tk.Execute(ctx, sess)

	require.NoError(t, err)
	assert.Equal(t, OutcomeTolerated, outcome)
	assert.True(t, outcome.Ok())
	assert.True(t, finallyRan)
	assert.Contains(t, logs.String(), "Task failed, continuing.")
}

func TestTask_NoLogSuppressesRecords(t *testing.T) {
	ctx, sess, logs := newTestContext(t)
	tk := New("quiet", func(context.Context, *session.Session) error { return nil }).NoLog()

	outcome, err := tk.Execute(ctx, sess)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, outcome)
	assert.Zero(t, testutil.CountLines(logs, "task=quiet"))
}

func TestTask_PanicIsRecovered(t *testing.T) {
	ctx, sess, _ := newTestContext(t)
	finallyRan := false
	tk := New("panicky", func(context.Context, *session.Session) error {
		panic("kaboom")
	}).Finally(func(context.Context, *session.Session) { finallyRan = true })

	var outcome Outcome
	var err error
	require.NotPanics(t, func() { outcome, err = tk.Execute(ctx, sess) })

	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorContains(t, err, "panic: kaboom")
	assert.True(t, finallyRan)
}

func TestTask_CancellationStopsRetries(t *testing.T) {
	_, sess, _ := newTestContext(t)
	ctx, cancel := context.WithCancel(sess.Context(context.Background()))
	calls := 0
	tk := New("cancelled", func(context.Context, *session.Session) error {
		calls++
		cancel()
		return errors.New("first failure")
	}).Retry(5, time.Hour)

	outcome, err := tk.Execute(ctx, sess)

	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorContains(t, err, "first failure")
	assert.Equal(t, 1, calls)
}

func TestTask_AlreadyCancelledContext(t *testing.T) {
	_, sess, _ := newTestContext(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	worked := false
	tk := New("never", func(context.Context, *session.Session) error {
		worked = true
		return nil
	})

	_, err := tk.Execute(ctx, sess)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, worked)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "succeeded", OutcomeSucceeded.String())
	assert.Equal(t, "skipped", OutcomeSkipped.String())
	assert.Equal(t, "tolerated", OutcomeTolerated.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "Outcome(42)", Outcome(42).String())
}
