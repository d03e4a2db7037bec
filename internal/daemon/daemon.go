package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"falcon/internal/config"
	"falcon/internal/dispatch"
	"falcon/internal/logging"
	"falcon/internal/queue"
	"falcon/internal/services"
	"falcon/internal/services/cromwell"
)

// ErrAlreadyRunning reports that another dispatcher holds the instance lock.
var ErrAlreadyRunning = errors.New("another falcon dispatcher instance is already running")

// Daemon runs the queue handler and the igniter pool against one engine and
// enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	engine dispatch.Engine
	logger *slog.Logger
	filter cromwell.Filter

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt atomic.Pointer[time.Time]
	queue     atomic.Pointer[queue.Queue]
	stats     atomic.Pointer[dispatch.Stats]
}

// Status represents dispatcher runtime information.
type Status struct {
	Running      bool
	Uptime       time.Duration
	Queue        queue.Stats
	Dispatch     dispatch.StatsSnapshot
	LockFilePath string
}

// New constructs a daemon for cfg using engine for all remote calls.
func New(cfg *config.Config, engine dispatch.Engine, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || engine == nil {
		return nil, errors.New("daemon requires config and engine")
	}
	if cfg.Dispatch.Igniters < 1 {
		return nil, fmt.Errorf("daemon requires at least one igniter, got %d", cfg.Dispatch.Igniters)
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		engine:   engine,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		filter:   DiscoveryFilter(cfg),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// DiscoveryFilter builds the engine query filter from configuration. In
// service account mode the collection label is always part of the predicate.
func DiscoveryFilter(cfg *config.Config) cromwell.Filter {
	filter := cromwell.Filter{
		Status:              cromwell.Status(cfg.Discovery.Status),
		IncludeSubworkflows: cfg.Discovery.IncludeSubworkflows,
	}
	for key, value := range cfg.Discovery.Labels {
		filter = filter.WithLabel(key, value)
	}
	if cfg.Engine.UsesServiceAccount() && cfg.Engine.CollectionName != "" {
		filter = filter.WithLabel(cromwell.LabelCollectionName, cfg.Engine.CollectionName)
	}
	return filter
}

// Run acquires the instance lock, probes the engine and dispatches until ctx
// is cancelled or a worker reports a fatal error. It returns nil on a clean
// shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	if err := d.cfg.EnsureDirectories(); err != nil {
		return services.Wrap(services.ErrConfiguration, "daemon", "prepare directories", "log directory unavailable", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	if err := d.probe(ctx); err != nil {
		return err
	}

	q := queue.New(d.cfg.Dispatch.QueueMaxSize)
	stats := &dispatch.Stats{}
	now := time.Now()
	d.queue.Store(q)
	d.stats.Store(stats)
	d.startedAt.Store(&now)

	d.logger.Info("falcon dispatcher started",
		logging.String("lock", d.lockPath),
		logging.String("status", string(d.filter.Status)),
		logging.Int("igniters", d.cfg.Dispatch.Igniters),
		logging.Duration("queue_update_interval", d.cfg.Discovery.PollInterval()),
		logging.Duration("workflow_start_interval", d.cfg.Dispatch.StartInterval()),
		logging.Int("queue_max_size", d.cfg.Dispatch.QueueMaxSize),
	)

	workerLogger := logging.NewComponentLogger(d.logger, "dispatch")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		q.Close()
		return nil
	})

	handler := dispatch.NewHandler(d.engine, q, d.filter, d.cfg.Discovery.PollInterval(),
		dispatch.WithHandlerLogger(workerLogger),
		dispatch.WithHandlerStats(stats),
	)
	g.Go(func() error { return handler.Run(gctx) })

	for i := 1; i <= d.cfg.Dispatch.Igniters; i++ {
		igniter := dispatch.NewIgniter(i, d.engine, q, d.cfg.Dispatch.StartInterval(),
			dispatch.WithIgniterLogger(workerLogger),
			dispatch.WithIgniterStats(stats),
		)
		g.Go(func() error { return igniter.Run(gctx) })
	}

	runErr := g.Wait()
	d.logSummary(stats.Snapshot(), time.Since(now), runErr)
	return runErr
}

// probe issues one discovery query before any worker starts. Rejected
// credentials abort startup; an unreachable engine only warns because the
// handler keeps polling.
func (d *Daemon) probe(ctx context.Context) error {
	records, err := d.engine.Query(ctx, d.filter)
	if err == nil {
		d.logger.Info("engine probe succeeded", logging.Int("workflows", len(records)))
		return nil
	}
	if services.IsFatal(err) {
		logging.ErrorWithContext(d.logger, "engine probe rejected credentials", services.Classify(err),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check engine.auth_mode and credentials"),
		)
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	logging.WarnWithContext(d.logger, "engine probe failed; continuing", services.Classify(err),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check engine.url and network reachability"),
		logging.String(logging.FieldImpact, "discovery retries every poll interval"),
	)
	return nil
}

func (d *Daemon) logSummary(snap dispatch.StatsSnapshot, uptime time.Duration, runErr error) {
	attrs := []logging.Attr{
		logging.Duration("uptime", uptime),
		logging.Int64("cycles", snap.Cycles),
		logging.Int64("cycle_failures", snap.CycleFailures),
		logging.Int64("enqueued", snap.Enqueued),
		logging.Int64("started", snap.Started),
		logging.Int64("rejected", snap.Rejected),
		logging.Int64("failed", snap.Failed),
	}
	if runErr != nil {
		attrs = append(attrs, logging.Error(runErr))
		logging.ErrorWithContext(d.logger, "falcon dispatcher stopped on fatal error", services.Classify(runErr), attrs...)
		return
	}
	d.logger.Info("falcon dispatcher stopped", logging.Args(attrs...)...)
}

// Status returns a snapshot of the running dispatcher. Counters are from the
// most recent run.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		LockFilePath: d.lockPath,
	}
	if q := d.queue.Load(); q != nil {
		status.Queue = q.Snapshot()
	}
	if stats := d.stats.Load(); stats != nil {
		status.Dispatch = stats.Snapshot()
	}
	if started := d.startedAt.Load(); started != nil && status.Running {
		status.Uptime = time.Since(*started)
	}
	return status
}
