// Package daemon coordinates the long-running falcon dispatcher process.
//
// It owns the single-instance flock lock, probes the engine once before any
// worker starts, and runs the queue handler plus the igniter pool inside one
// errgroup. A fatal worker error or a cancelled context stops every worker;
// the work queue is closed so blocked waiters wake up, and Run returns once
// all of them have exited.
//
// Keep orchestration logic here: discovery and dispatch behaviour live in
// internal/dispatch while the daemon focuses on startup, shutdown, and
// lifecycle reporting.
package daemon
