// Package dispatch contains the two worker kinds that move held workflows into
// the running state.
//
// A single Handler polls the engine on a fixed cadence and enqueues every
// matching workflow id. Any number of Igniters drain the queue, calling the
// engine's release endpoint for one id at a time and pausing between their own
// attempts so the per-worker request rate stays bounded. The work queue is the
// only state the workers share.
//
// Failures follow one rule: anything that can heal by itself is logged and the
// loop goes on, while rejected credentials seen by the Handler end its Run with
// an error so the process can shut down.
package dispatch
