package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"falcon/internal/dispatch"
	"falcon/internal/queue"
	"falcon/internal/services"
	"falcon/internal/testsupport"
)

// Two held workflows flow through one handler and one igniter; a stale poll
// that still reports wf-1 as held puts it back on the queue.
func TestDispatchOnHoldScenario(t *testing.T) {
	const interval = 300 * time.Millisecond
	engine := testsupport.NewFakeEngine("wf-1", "wf-2")
	engine.StaleReads("wf-1", 1)
	q := queue.New(0)
	stats := &dispatch.Stats{}
	log := &attemptLog{}

	h := dispatch.NewHandler(engine, q, onHold(), time.Hour, dispatch.WithHandlerStats(stats))
	if err := h.Cycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if q.Len() != 2 {
		t.Fatalf("expected both workflows queued, got %d", q.Len())
	}

	ig := dispatch.NewIgniter(1, engine, q, interval,
		dispatch.WithIgniterStats(stats),
		dispatch.WithAttemptObserver(log.observe),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runAsync(ctx, ig.Run)

	calls := engine.WaitForStarts(t, 2, 5*time.Second)
	if calls[0].ID != "wf-1" || calls[1].ID != "wf-2" {
		t.Fatalf("unexpected dispatch order %s, %s", calls[0].ID, calls[1].ID)
	}
	if calls[0].Err != nil || calls[1].Err != nil {
		t.Fatalf("expected both starts to succeed: %v, %v", calls[0].Err, calls[1].Err)
	}
	if gap := calls[1].At.Sub(calls[0].At); gap < interval {
		t.Fatalf("wf-2 dispatched %v after wf-1, want >= %v", gap, interval)
	}
	eventually(t, func() bool { return q.State("wf-1") == queue.StateAbsent }, "wf-1 completed")

	// The engine still lists wf-1 as held, so it is queued again.
	if err := h.Cycle(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	calls = engine.WaitForStarts(t, 3, 5*time.Second)
	cancel()
	if err := awaitResult(t, done); err != nil {
		t.Fatalf("igniter: %v", err)
	}

	if calls[2].ID != "wf-1" || !errors.Is(calls[2].Err, services.ErrEngineRejected) {
		t.Fatalf("expected stale wf-1 to be retried and rejected, got %+v", calls[2])
	}
	snap := stats.Snapshot()
	if snap.Enqueued != 3 || snap.Started != 2 || snap.Rejected != 1 {
		t.Fatalf("unexpected stats %+v", snap)
	}
	attempts := log.snapshot()
	if len(attempts) != 3 || attempts[2].Outcome != dispatch.OutcomeRejected {
		t.Fatalf("unexpected attempts %+v", attempts)
	}
}
