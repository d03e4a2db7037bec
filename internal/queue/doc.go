// Package queue holds the in-memory work queue shared by the queue handler and
// the igniters.
//
// Every workflow id is in exactly one State: absent, queued, or in flight.
// TryEnqueue only admits absent ids, Dequeue moves the head id to in flight,
// and Complete returns it to absent so the next discovery cycle may pick it
// up again. Nothing is persisted; the engine is the source of truth after a
// restart.
//
// The queue lock only guards bookkeeping. Blocked callers wait on a change
// channel outside the lock, which lets context cancellation and Close wake
// them promptly.
package queue
