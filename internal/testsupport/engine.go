package testsupport

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"falcon/internal/services"
	"falcon/internal/services/cromwell"
)

// StartCall records one Start invocation against a FakeEngine.
type StartCall struct {
	ID  string
	At  time.Time
	Err error
}

// FakeEngine is an in-memory stand-in for the Cromwell API. Held ids are
// returned by Query in hold order; Start releases a held id and rejects
// anything else, the way the engine answers a release of a non-held workflow.
type FakeEngine struct {
	mu          sync.Mutex
	held        []string
	queryErrs   []error
	startErrs   map[string]error
	staleReads  map[string]int
	starts      []StartCall
	active      map[string]bool
	overlaps    []string
	queries     int
	lastFilter  cromwell.Filter
	startDelay  time.Duration
	queryNotify chan struct{}
	startNotify chan struct{}
}

// NewFakeEngine returns an engine holding ids.
func NewFakeEngine(ids ...string) *FakeEngine {
	f := &FakeEngine{
		startErrs:   make(map[string]error),
		staleReads:  make(map[string]int),
		active:      make(map[string]bool),
		queryNotify: make(chan struct{}, 1024),
		startNotify: make(chan struct{}, 1024),
	}
	f.Hold(ids...)
	return f
}

// Hold puts ids on hold, appending them after any already held.
func (f *FakeEngine) Hold(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		if !slices.Contains(f.held, id) {
			f.held = append(f.held, id)
		}
	}
}

// FailQueries makes the next len(errs) queries return those errors in order.
// A nil entry lets that query succeed.
func (f *FakeEngine) FailQueries(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryErrs = append(f.queryErrs, errs...)
}

// FailStart makes every Start of id return err.
func (f *FakeEngine) FailStart(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startErrs[id] = err
}

// StaleReads keeps id visible to the next n queries after it has been
// started, modelling an engine whose query index lags behind releases.
func (f *FakeEngine) StaleReads(id string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staleReads[id] = n
}

// SetStartDelay makes every Start block for d before answering.
func (f *FakeEngine) SetStartDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startDelay = d
}

// Query implements the engine query.
func (f *FakeEngine) Query(ctx context.Context, filter cromwell.Filter) ([]cromwell.WorkflowRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.notify(f.queryNotify)
	defer f.mu.Unlock()

	f.queries++
	f.lastFilter = filter
	if len(f.queryErrs) > 0 {
		err := f.queryErrs[0]
		f.queryErrs = f.queryErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	records := make([]cromwell.WorkflowRecord, 0, len(f.held))
	for _, id := range f.held {
		records = append(records, cromwell.WorkflowRecord{ID: id, Status: cromwell.StatusOnHold})
	}
	for id, n := range f.staleReads {
		if n <= 0 || slices.Contains(f.held, id) || !f.startedLocked(id) {
			continue
		}
		f.staleReads[id] = n - 1
		records = append(records, cromwell.WorkflowRecord{ID: id, Status: cromwell.StatusOnHold})
	}
	return records, nil
}

// Start implements the engine hold release.
func (f *FakeEngine) Start(ctx context.Context, id string) error {
	f.mu.Lock()
	if f.active[id] {
		f.overlaps = append(f.overlaps, id)
	}
	f.active[id] = true
	at := time.Now()
	delay := f.startDelay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}

	f.mu.Lock()
	defer f.notify(f.startNotify)
	defer f.mu.Unlock()
	delete(f.active, id)

	err := f.startErrs[id]
	if err == nil {
		idx := slices.Index(f.held, id)
		if idx < 0 {
			err = services.Wrap(services.ErrEngineRejected, "cromwell", "start", fmt.Sprintf("workflow %s is not on hold", id), nil)
		} else {
			f.held = slices.Delete(f.held, idx, idx+1)
		}
	}
	f.starts = append(f.starts, StartCall{ID: id, At: at, Err: err})
	return err
}

// Starts returns every Start call so far.
func (f *FakeEngine) Starts() []StartCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]StartCall(nil), f.starts...)
}

// Released returns the ids successfully started, in order.
func (f *FakeEngine) Released() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, call := range f.starts {
		if call.Err == nil {
			ids = append(ids, call.ID)
		}
	}
	return ids
}

// Held returns the ids still on hold.
func (f *FakeEngine) Held() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.held...)
}

// Overlaps lists ids whose Start was entered while another Start of the same
// id was still running.
func (f *FakeEngine) Overlaps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.overlaps...)
}

// QueryCount returns the number of Query calls.
func (f *FakeEngine) QueryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

// LastFilter returns the filter passed to the most recent Query.
func (f *FakeEngine) LastFilter() cromwell.Filter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastFilter
}

// WaitForQueries blocks until at least n queries have completed.
func (f *FakeEngine) WaitForQueries(t testing.TB, n int, timeout time.Duration) {
	t.Helper()
	f.waitFor(t, f.queryNotify, timeout, func() bool { return f.QueryCount() >= n }, "%d queries", n)
}

// WaitForStarts blocks until at least n Start calls have completed and
// returns them.
func (f *FakeEngine) WaitForStarts(t testing.TB, n int, timeout time.Duration) []StartCall {
	t.Helper()
	f.waitFor(t, f.startNotify, timeout, func() bool { return len(f.Starts()) >= n }, "%d starts", n)
	return f.Starts()
}

func (f *FakeEngine) waitFor(t testing.TB, ch <-chan struct{}, timeout time.Duration, done func() bool, format string, args ...any) {
	t.Helper()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for !done() {
		select {
		case <-ch:
		case <-deadline.C:
			t.Fatalf("timed out waiting for "+format, args...)
		}
	}
}

func (f *FakeEngine) startedLocked(id string) bool {
	for _, call := range f.starts {
		if call.ID == id && call.Err == nil {
			return true
		}
	}
	return false
}

func (f *FakeEngine) notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
