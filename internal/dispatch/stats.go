package dispatch

import "sync/atomic"

// Stats accumulates dispatch counters for the shutdown summary. Counters are
// reporting only and never drive control flow.
type Stats struct {
	cycles        atomic.Int64
	cycleFailures atomic.Int64
	discovered    atomic.Int64
	enqueued      atomic.Int64
	duplicates    atomic.Int64
	started       atomic.Int64
	rejected      atomic.Int64
	failed        atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Cycles        int64
	CycleFailures int64
	Discovered    int64
	Enqueued      int64
	Duplicates    int64
	Started       int64
	Rejected      int64
	Failed        int64
}

// Snapshot copies the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	return StatsSnapshot{
		Cycles:        s.cycles.Load(),
		CycleFailures: s.cycleFailures.Load(),
		Discovered:    s.discovered.Load(),
		Enqueued:      s.enqueued.Load(),
		Duplicates:    s.duplicates.Load(),
		Started:       s.started.Load(),
		Rejected:      s.rejected.Load(),
		Failed:        s.failed.Load(),
	}
}

// Attempts returns the total number of start calls.
func (s StatsSnapshot) Attempts() int64 {
	return s.Started + s.Rejected + s.Failed
}

func (s *Stats) recordAttempt(outcome Outcome) {
	if s == nil {
		return
	}
	switch outcome {
	case OutcomeStarted:
		s.started.Add(1)
	case OutcomeRejected:
		s.rejected.Add(1)
	default:
		s.failed.Add(1)
	}
}

func (s *Stats) recordCycle(discovered, enqueued, duplicates int, failed bool) {
	if s == nil {
		return
	}
	s.cycles.Add(1)
	if failed {
		s.cycleFailures.Add(1)
	}
	s.discovered.Add(int64(discovered))
	s.enqueued.Add(int64(enqueued))
	s.duplicates.Add(int64(duplicates))
}
