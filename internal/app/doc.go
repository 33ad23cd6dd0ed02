// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the build lifecycle: load build files,
// resolve properties, compile targets, run the graph and report, decoupled
// from any specific entrypoint like a CLI.
package app
