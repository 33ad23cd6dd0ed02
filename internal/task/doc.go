// Package task holds the leaf units of build work: Task and Group.
//
// # Tasks
//
// A Task wraps a work function with an error policy. Execution follows a
// fixed order:
//
//  1. The guard, if any, is evaluated exactly once. A false guard skips the
//     task: the work function and every hook are left untouched, and the
//     task counts as successful.
//  2. The work function runs up to 1 + retry count times with the configured
//     delay between attempts. Each attempt writes one "Task attempt." log
//     record unless the task is marked NoLog. A panic inside the work
//     function is recovered and treated as a failed attempt.
//  3. When every attempt failed, the on-error hook receives the last error.
//     DoNotFailOnError then turns the failure into OutcomeTolerated.
//  4. The finally hook runs last, on every path that reached step 2.
//
// # Groups
//
// A Group is an ordered list of steps sharing one guard and one pair of
// hooks. Members never short-circuit each other: every member runs, the group
// on-error hook fires once with the joined member errors, and the group
// finally hook fires once after that.
//
// Both types satisfy Step, which is what targets hold.
package task
