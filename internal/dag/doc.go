// Package dag owns the target graph: it registers targets, validates their
// dependency edges, resolves execution order and drives a run.
//
// # Build phase
//
// Targets are registered one at a time. Duplicate names are rejected on
// registration. Validate (called implicitly by Resolve and Run) rejects edges
// that name unregistered targets and dependency cycles. All of these are
// configuration errors and match ErrConfiguration with errors.Is; they are
// returned before any step executes.
//
// # Run phase
//
// Every target in the dependency closure of the requested targets runs at
// most once per Run. The first caller to reach a target starts it on its own
// goroutine and every later caller waits on the same completion channel.
//
// For each target:
//
//  1. Async dependencies are launched together.
//  2. Sync dependencies are run one by one in declared order. An
//     un-tolerated failure ends the sync chain.
//  3. The target waits for every async dependency, even after a sync failure.
//  4. If a dependency failed and the target does not tolerate dependency
//     failures, the target is blocked and never runs its body.
//  5. Otherwise the body runs while holding one worker slot.
//
// Only bodies hold worker slots, so a target waiting on its dependencies
// never starves them.
//
// # Tolerance
//
// A failure counts against the run when something intolerant observed it:
// a requested root target, or a dependent that does not tolerate dependency
// failures. Failures observed only by tolerating dependents are reported as
// tolerated and logged at WARN, but do not fail the run.
package dag
