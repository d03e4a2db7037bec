package queue

import (
	"context"
	"sync"
)

// Queue is a bounded FIFO of workflow ids with duplicate suppression. An id
// stays tracked from TryEnqueue until Complete, so it cannot be queued twice
// or handed to two igniters at once.
type Queue struct {
	mu       sync.Mutex
	capacity int
	items    []string
	states   map[string]State
	inFlight int
	closed   bool
	// changed is closed and replaced whenever the queue mutates, waking every
	// goroutine blocked on fullness or emptiness.
	changed chan struct{}
}

// New creates a queue holding at most capacity queued ids. A capacity of zero
// or less means unbounded. In-flight ids do not count against the capacity.
func New(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		capacity: capacity,
		states:   make(map[string]State),
		changed:  make(chan struct{}),
	}
}

// TryEnqueue appends id unless it is already queued or in flight, reporting
// whether it was added. When the queue is full it blocks until space frees,
// ctx is cancelled, or the queue is closed.
func (q *Queue) TryEnqueue(ctx context.Context, id string) (bool, error) {
	q.mu.Lock()
	for {
		if q.closed {
			q.mu.Unlock()
			return false, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			q.mu.Unlock()
			return false, err
		}
		if _, tracked := q.states[id]; tracked {
			q.mu.Unlock()
			return false, nil
		}
		if q.capacity == 0 || len(q.items) < q.capacity {
			q.items = append(q.items, id)
			q.states[id] = StateQueued
			q.notifyLocked()
			q.mu.Unlock()
			return true, nil
		}
		if !q.waitLocked(ctx) {
			return false, q.cancelErr(ctx)
		}
	}
}

// Dequeue removes the head id and marks it in flight. It blocks while the
// queue is empty until an id arrives, ctx is cancelled, or the queue is closed.
// Callers must pass every returned id to Complete.
func (q *Queue) Dequeue(ctx context.Context) (string, error) {
	q.mu.Lock()
	for {
		if q.closed {
			q.mu.Unlock()
			return "", ErrClosed
		}
		if err := ctx.Err(); err != nil {
			q.mu.Unlock()
			return "", err
		}
		if len(q.items) > 0 {
			id := q.items[0]
			q.items[0] = ""
			q.items = q.items[1:]
			q.states[id] = StateInFlight
			q.inFlight++
			q.notifyLocked()
			q.mu.Unlock()
			return id, nil
		}
		if !q.waitLocked(ctx) {
			return "", q.cancelErr(ctx)
		}
	}
}

// Complete releases an in-flight id so a later discovery can enqueue it again.
// It reports whether id was in flight.
func (q *Queue) Complete(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.states[id] != StateInFlight {
		return false
	}
	delete(q.states, id)
	q.inFlight--
	q.notifyLocked()
	return true
}

// Close wakes all waiters with ErrClosed and rejects further calls. Ids
// still queued are dropped; the engine remains the source of truth for them.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notifyLocked()
}

// State reports where id currently is.
func (q *Queue) State(id string) State {
	q.mu.Lock()
	defer q.mu.Unlock()
	if state, ok := q.states[id]; ok {
		return state
	}
	return StateAbsent
}

// Len returns the number of queued ids.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// InFlight returns the number of dequeued ids not yet completed.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// Snapshot returns the current occupancy.
func (q *Queue) Snapshot() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{Queued: len(q.items), InFlight: q.inFlight, Capacity: q.capacity, Closed: q.closed}
}

func (q *Queue) notifyLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// waitLocked releases the lock until the queue changes or ctx is done. It
// returns with the lock held and true after a change, or without the lock
// and false on cancellation.
func (q *Queue) waitLocked(ctx context.Context) bool {
	changed := q.changed
	q.mu.Unlock()
	select {
	case <-ctx.Done():
		return false
	case <-changed:
		q.mu.Lock()
		return true
	}
}

func (q *Queue) cancelErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrClosed
}
