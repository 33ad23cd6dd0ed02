// Package cli turns the command line into an Invocation: which command to
// run, the validated application config, requested targets and key=value
// property overrides. It also owns the mapping from errors to process exit
// codes.
package cli
