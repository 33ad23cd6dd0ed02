// Package config defines the format-agnostic build model and the Loader
// interface for reading it from build files.
//
// The Model is the single input to the compiler that turns declarations into
// target builders. Concrete loaders, such as the HCL one, live in separate
// packages. Expressions are kept unevaluated: task arguments and guards are
// evaluated when the task runs, against the live property bag.
package config
