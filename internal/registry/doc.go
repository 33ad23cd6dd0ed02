// Package registry provides the central "glue" for the task kind system.
//
// The Registry maps the kind names used in build files (the label of a
// `task "exec" { ... }` block) to the compiled Go handlers implementing them,
// together with a constructor for the handler's input struct. The HCL
// compiler uses the input struct both to schema-check task arguments at
// configuration time and to decode them when the task runs.
package registry
