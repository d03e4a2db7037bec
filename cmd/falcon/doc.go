// Package main hosts the falcon CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the dispatcher in the foreground, lists
// the workflows it would release, releases individual workflows by hand, runs
// preflight checks, and scaffolds configuration. It centralizes configuration
// resolution so subcommands can focus on output instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
