// Package logging assembles structured slog loggers and formatting helpers used
// across falcon.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so worker code can tag log lines
// with workflow IDs, worker names, and discovery cycle IDs. Run logs are pruned
// by CleanupOldLogs. A no-op logger is provided for tests and wiring code that
// cannot fail.
package logging
