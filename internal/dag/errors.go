package dag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfiguration matches every error raised while building or validating
// the graph, before any target runs.
var ErrConfiguration = errors.New("configuration error")

// DuplicateTargetError is returned when two targets share a name.
type DuplicateTargetError struct {
	Name string
}

func (e *DuplicateTargetError) Error() string {
	return fmt.Sprintf("target '%s' is already registered", e.Name)
}

func (e *DuplicateTargetError) Is(target error) bool { return target == ErrConfiguration }

// UnknownTargetError is returned for a reference to an unregistered target.
// Referrer is empty when the name was requested directly.
type UnknownTargetError struct {
	Name     string
	Referrer string
}

func (e *UnknownTargetError) Error() string {
	if e.Referrer == "" {
		return fmt.Sprintf("unknown target '%s'", e.Name)
	}
	return fmt.Sprintf("target '%s' depends on unknown target '%s'", e.Referrer, e.Name)
}

func (e *UnknownTargetError) Is(target error) bool { return target == ErrConfiguration }

// CyclicDependencyError names the targets forming a dependency cycle. The
// first element is repeated at the end.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return "dependency cycle detected: " + strings.Join(e.Cycle, " -> ")
}

func (e *CyclicDependencyError) Is(target error) bool { return target == ErrConfiguration }

// InvalidTargetError wraps a target definition that could not be built.
type InvalidTargetError struct {
	Name string
	Err  error
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid target '%s': %v", e.Name, e.Err)
}

func (e *InvalidTargetError) Unwrap() error { return e.Err }

func (e *InvalidTargetError) Is(target error) bool { return target == ErrConfiguration }

// NoTargetError is returned when nothing was requested and no target is
// marked as default.
type NoTargetError struct{}

func (e *NoTargetError) Error() string {
	return "no target requested and no default target defined"
}

func (e *NoTargetError) Is(target error) bool { return target == ErrConfiguration }

// DependencyFailedError explains why a target was blocked.
type DependencyFailedError struct {
	Target     string
	Dependency string
	Err        error
}

func (e *DependencyFailedError) Error() string {
	return fmt.Sprintf("target '%s' blocked: dependency '%s' failed", e.Target, e.Dependency)
}

func (e *DependencyFailedError) Unwrap() error { return e.Err }

// TargetFailure is one failed or blocked target in a run.
type TargetFailure struct {
	Target string
	Err    error
}

// GraphError aggregates every failure that counted against a run.
type GraphError struct {
	Failures []TargetFailure
}

func (e *GraphError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Target, f.Err))
	}
	return fmt.Sprintf("build failed, %d target(s) did not succeed: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *GraphError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
