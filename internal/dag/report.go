package dag

import (
	"fmt"
	"time"
)

// Status is the final state of a target in a run.
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
	// StatusSkipped means every step of the target was skipped by its guard.
	StatusSkipped
	// StatusTolerated is a failure that no intolerant observer saw.
	StatusTolerated
	// StatusBlocked means the body never started.
	StatusBlocked
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusTolerated:
		return "tolerated"
	case StatusBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Failed reports whether the status is a failure of any kind.
func (s Status) Failed() bool {
	return s == StatusFailed || s == StatusBlocked || s == StatusTolerated
}

// TargetReport describes one executed or blocked target.
type TargetReport struct {
	Name      string
	Status    Status
	Started   time.Time
	Duration  time.Duration
	Err       error
	Tolerated bool

	// StepsTolerated marks a target that succeeded although one of its steps
	// failed under do_not_fail_on_error.
	StepsTolerated bool
}

// Report is the outcome of one Run.
type Report struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	// Targets are listed in completion order.
	Targets []TargetReport

	err error
}

// Succeeded reports whether every failure in the run was tolerated.
func (r *Report) Succeeded() bool {
	return r.err == nil
}

// Err returns the aggregate *GraphError, or nil.
func (r *Report) Err() error {
	return r.err
}

// Target returns the report entry for name.
func (r *Report) Target(name string) (TargetReport, bool) {
	for _, t := range r.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return TargetReport{}, false
}

// Count returns how many targets finished with status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, t := range r.Targets {
		if t.Status == s {
			n++
		}
	}
	return n
}
