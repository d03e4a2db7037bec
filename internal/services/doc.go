// Package services defines shared utilities consumed by the dispatch workers
// and the engine integration.
//
// Key responsibilities:
//   - Context helpers that stamp workflow IDs, worker names, and discovery
//     cycle identifiers for logging.
//   - Sentinel error markers plus the Wrap helper so engine failures can be
//     classified (fatal, transient, rejected) with errors.Is anywhere up the
//     call stack.
//
// Use these helpers when wiring new worker logic so error classification and
// observability stay uniform across the dispatcher.
package services
