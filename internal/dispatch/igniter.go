package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"falcon/internal/logging"
	"falcon/internal/queue"
	"falcon/internal/services"
)

// Igniter is a dispatch worker. It takes ids off the work queue one at a time
// and releases them, waiting at least interval between its own start calls.
type Igniter struct {
	name     string
	engine   Starter
	queue    *queue.Queue
	interval time.Duration
	logger   *slog.Logger
	stats    *Stats
	observe  func(Attempt)

	// lastAttempt is when the previous start call returned.
	lastAttempt time.Time
}

// IgniterOption customises an Igniter.
type IgniterOption func(*Igniter)

// WithIgniterLogger sets the igniter's logger.
func WithIgniterLogger(logger *slog.Logger) IgniterOption {
	return func(g *Igniter) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithIgniterStats shares a counter set with the igniter.
func WithIgniterStats(stats *Stats) IgniterOption {
	return func(g *Igniter) {
		g.stats = stats
	}
}

// WithAttemptObserver registers fn to be called after every start attempt.
func WithAttemptObserver(fn func(Attempt)) IgniterOption {
	return func(g *Igniter) {
		g.observe = fn
	}
}

// NewIgniter builds igniter number index.
func NewIgniter(index int, engine Starter, q *queue.Queue, interval time.Duration, opts ...IgniterOption) *Igniter {
	g := &Igniter{
		name:     fmt.Sprintf("igniter-%d", index),
		engine:   engine,
		queue:    q,
		interval: interval,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(logging.String(logging.FieldWorker, g.name))
	return g
}

// Name returns the worker name used in logs.
func (g *Igniter) Name() string { return g.name }

// Run dispatches until ctx is cancelled or the queue is closed. Start errors
// never end the loop; the failed id becomes discoverable again.
func (g *Igniter) Run(ctx context.Context) error {
	ctx = services.WithWorker(ctx, g.name)
	g.logger.Info("igniter started", logging.Duration("interval", g.interval))
	defer g.logger.Info("igniter stopped")

	for {
		if !g.throttle(ctx) {
			return nil
		}
		id, err := g.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		g.dispatch(ctx, id)
	}
}

// throttle waits out the rest of the interval since the previous attempt
// completed, so consecutive calls are at least interval apart end to end.
// Idle time spent blocked in Dequeue counts toward the interval.
func (g *Igniter) throttle(ctx context.Context) bool {
	if g.lastAttempt.IsZero() {
		return ctx.Err() == nil
	}
	return sleepContext(ctx, g.interval-time.Since(g.lastAttempt))
}

func (g *Igniter) dispatch(ctx context.Context, id string) {
	defer g.queue.Complete(id)

	ctx = services.WithWorkflowID(ctx, id)
	logger := logging.WithContext(ctx, g.logger)
	logger.Debug("workflow dequeued")

	began := time.Now()
	// A start that has been sent is allowed to finish during shutdown.
	err := g.engine.Start(context.WithoutCancel(ctx), id)
	g.lastAttempt = time.Now()
	attempt := Attempt{
		WorkflowID: id,
		Worker:     g.name,
		StartedAt:  began,
		Duration:   g.lastAttempt.Sub(began),
		Outcome:    OutcomeOf(err),
		Err:        err,
	}
	g.stats.recordAttempt(attempt.Outcome)
	g.report(logger, attempt)
	if g.observe != nil {
		g.observe(attempt)
	}
}

func (g *Igniter) report(logger *slog.Logger, attempt Attempt) {
	logger = logger.With(
		logging.String(logging.FieldOutcome, string(attempt.Outcome)),
		logging.Duration("elapsed", attempt.Duration),
	)
	switch attempt.Outcome {
	case OutcomeStarted:
		logger.Info("workflow started")
	case OutcomeRejected:
		logger.Info("workflow no longer startable", logging.Error(attempt.Err))
	default:
		hint := "check engine reachability"
		if errors.Is(attempt.Err, services.ErrEngineAuth) {
			hint = "check engine credentials"
		}
		logging.WarnWithContext(logger, "workflow start failed", services.Classify(attempt.Err),
			logging.Error(attempt.Err),
			logging.String(logging.FieldErrorHint, hint),
			logging.String(logging.FieldImpact, "workflow stays on hold until rediscovered"),
		)
	}
}
