package dag

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/session"
	"github.com/vk/buildgrid/internal/task"
	"golang.org/x/sync/semaphore"
)

// Hooks observe target execution. Either field may be nil.
type Hooks struct {
	OnTargetStart  func(ctx context.Context, name string)
	OnTargetFinish func(ctx context.Context, name string, status Status, duration time.Duration, err error)
	// OnRunFinish sees the final report, after tolerated failures have been
	// reclassified.
	OnRunFinish func(ctx context.Context, report *Report)
}

// state is the memoized execution of one target within a run.
type state struct {
	once sync.Once
	done chan struct{}

	status   Status
	err      error
	started  time.Time
	duration time.Duration
	// stepsTolerated is set when the body succeeded past a failed step
	// marked do_not_fail_on_error.
	stepsTolerated bool
	// counted is set once an intolerant observer has seen this target fail.
	counted atomic.Bool
}

func (s *state) failed() bool {
	return s.status == StatusFailed || s.status == StatusBlocked
}

// run holds the bookkeeping of a single Run call.
type run struct {
	g      *Graph
	sess   *session.Session
	sem    *semaphore.Weighted
	states map[string]*state

	mu       sync.Mutex
	finished []string
}

// Run executes the requested targets, or the default targets when none are
// given, together with their dependencies. Configuration errors are returned
// with a nil report. Otherwise the report is always returned, and the error
// is the report's aggregate error.
//
// Requested targets run one after another in the given order. Once one of
// them fails, the remaining requested targets are not started.
func (g *Graph) Run(ctx context.Context, sess *session.Session, names ...string) (*Report, error) {
	if len(names) == 0 {
		names = g.Defaults()
		if len(names) == 0 {
			return nil, &NoTargetError{}
		}
	}
	order, err := g.Resolve(names...)
	if err != nil {
		return nil, err
	}

	ctx = sess.Context(ctx)
	logger := ctxlog.FromContext(ctx)
	r := &run{
		g:      g,
		sess:   sess,
		sem:    semaphore.NewWeighted(int64(g.workers)),
		states: make(map[string]*state, len(order)),
	}
	for _, name := range order {
		r.states[name] = &state{done: make(chan struct{})}
	}

	report := &Report{RunID: sess.RunID, Started: time.Now()}
	logger.Info("Starting build.", "targets", names, "plan", order, "workers", g.workers)

	for _, name := range names {
		st := r.start(ctx, name)
		<-st.done
		st.counted.Store(true)
		if st.failed() {
			break
		}
	}

	report.Duration = time.Since(report.Started)
	report.Targets, report.err = r.collect(ctx)
	if report.err != nil {
		logger.Error("Build failed.", "duration", report.Duration, "error", report.err)
	} else {
		logger.Info("Build succeeded.", "duration", report.Duration)
	}
	if g.hooks.OnRunFinish != nil {
		g.hooks.OnRunFinish(ctx, report)
	}
	return report, report.err
}

// start launches the target once and returns its state.
func (r *run) start(ctx context.Context, name string) *state {
	st := r.states[name]
	st.once.Do(func() {
		go r.execute(ctx, name, st)
	})
	return st
}

func (r *run) execute(ctx context.Context, name string, st *state) {
	defer close(st.done)
	t := r.g.targets[name]
	ctx, logger := ctxlog.With(ctx, "target", name)

	async := make(map[string]*state)
	for _, dep := range t.AsyncDependencies() {
		async[dep] = r.start(ctx, dep)
	}

	var failedDep string
	var failedErr error
	observe := func(dep string, ds *state) {
		if !ds.failed() {
			return
		}
		if !t.TolerateDependencyFailures() {
			ds.counted.Store(true)
		} else {
			logger.Warn("Tolerating failed dependency.", "dependency", dep, "error", ds.err)
		}
		if failedDep == "" {
			failedDep, failedErr = dep, ds.err
		}
	}

	for _, dep := range t.SyncDependencies() {
		ds := r.start(ctx, dep)
		<-ds.done
		observe(dep, ds)
		if failedDep != "" && !t.TolerateDependencyFailures() {
			break
		}
	}
	for _, dep := range t.AsyncDependencies() {
		ds := async[dep]
		<-ds.done
		observe(dep, ds)
	}

	if failedDep != "" && !t.TolerateDependencyFailures() {
		logger.Warn("Target blocked by failed dependency.", "dependency", failedDep)
		r.finish(ctx, name, st, StatusBlocked, &DependencyFailedError{Target: name, Dependency: failedDep, Err: failedErr})
		return
	}
	if err := ctx.Err(); err != nil {
		r.finish(ctx, name, st, StatusBlocked, fmt.Errorf("target '%s' not started: %w", name, err))
		return
	}
	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.finish(ctx, name, st, StatusBlocked, fmt.Errorf("target '%s' not started: %w", name, err))
		return
	}

	st.started = time.Now()
	logger.Info("Target started.")
	if r.g.hooks.OnTargetStart != nil {
		r.g.hooks.OnTargetStart(ctx, name)
	}
	outcome, err := t.Execute(ctx, r.sess)
	r.sem.Release(1)

	status := StatusSucceeded
	switch {
	case err != nil:
		status = StatusFailed
	case outcome == task.OutcomeSkipped:
		status = StatusSkipped
	case outcome == task.OutcomeTolerated:
		st.stepsTolerated = true
		logger.Warn("Target succeeded with tolerated step failures.")
	}
	r.finish(ctx, name, st, status, err)
}

// finish records the result and notifies hooks. It must be called exactly
// once per executed target, before done is closed.
func (r *run) finish(ctx context.Context, name string, st *state, status Status, err error) {
	if !st.started.IsZero() {
		st.duration = time.Since(st.started)
	}
	st.status, st.err = status, err

	logger := ctxlog.FromContext(ctx)
	if err != nil {
		logger.Info("Target finished.", "status", status, "duration", st.duration, "error", err)
	} else {
		logger.Info("Target finished.", "status", status, "duration", st.duration)
	}
	if r.g.hooks.OnTargetFinish != nil {
		r.g.hooks.OnTargetFinish(ctx, name, status, st.duration, err)
	}

	r.mu.Lock()
	r.finished = append(r.finished, name)
	r.mu.Unlock()
}

// collect builds report entries in completion order and decides which
// failures count against the run.
func (r *run) collect(ctx context.Context) ([]TargetReport, error) {
	logger := ctxlog.FromContext(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()

	reports := make([]TargetReport, 0, len(r.finished))
	var failures []TargetFailure
	for _, name := range r.finished {
		st := r.states[name]
		tr := TargetReport{
			Name:     name,
			Status:   st.status,
			Started:  st.started,
			Duration: st.duration,
			Err:      st.err,

			StepsTolerated: st.stepsTolerated,
		}
		if st.failed() {
			if st.counted.Load() {
				failures = append(failures, TargetFailure{Target: name, Err: st.err})
			} else {
				tr.Tolerated = true
				if tr.Status == StatusFailed {
					tr.Status = StatusTolerated
				}
				logger.Warn("Target failure tolerated.", "target", name, "error", st.err)
			}
		}
		reports = append(reports, tr)
	}

	if len(failures) == 0 {
		return reports, nil
	}
	return reports, &GraphError{Failures: failures}
}
