package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"falcon/internal/logging"
	"falcon/internal/queue"
	"falcon/internal/services"
	"falcon/internal/services/cromwell"
)

// Handler is the discovery worker. Each cycle queries the engine with the
// configured filter and feeds every returned id to the work queue.
type Handler struct {
	engine   Querier
	queue    *queue.Queue
	filter   cromwell.Filter
	interval time.Duration
	logger   *slog.Logger
	stats    *Stats
}

// HandlerOption customises a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the handler's logger.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithHandlerStats shares a counter set with the handler.
func WithHandlerStats(stats *Stats) HandlerOption {
	return func(h *Handler) {
		h.stats = stats
	}
}

// NewHandler builds a discovery worker polling every interval.
func NewHandler(engine Querier, q *queue.Queue, filter cromwell.Filter, interval time.Duration, opts ...HandlerOption) *Handler {
	h := &Handler{
		engine:   engine,
		queue:    q,
		filter:   filter,
		interval: interval,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(logging.String(logging.FieldWorker, "handler"))
	return h
}

// Run polls until ctx is cancelled. It returns nil on shutdown and a non-nil
// error only when a cycle hit a failure that will not heal by itself.
func (h *Handler) Run(ctx context.Context) error {
	h.logger.Info("queue handler started",
		logging.String("status", string(h.filter.Status)),
		logging.Duration("interval", h.interval),
	)
	defer h.logger.Info("queue handler stopped")

	for {
		if err := h.Cycle(ctx); err != nil {
			return err
		}
		if !sleepContext(ctx, h.interval) {
			return nil
		}
	}
}

// Cycle runs one discovery pass. Transient engine failures are logged and
// swallowed; only fatal ones are returned.
func (h *Handler) Cycle(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	ctx = services.WithCycleID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, h.logger)
	began := time.Now()
	logger.Info("discovery cycle started")

	// An in-progress query finishes or times out on its own.
	records, err := h.engine.Query(context.WithoutCancel(ctx), h.filter)
	if err != nil {
		h.stats.recordCycle(0, 0, 0, true)
		if services.IsFatal(err) {
			logging.ErrorWithContext(logger, "engine rejected discovery credentials", services.Classify(err),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check engine credentials and service account key"),
			)
			return err
		}
		logging.WarnWithContext(logger, "discovery cycle skipped", services.Classify(err),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check engine reachability"),
			logging.String(logging.FieldImpact, "workflows will be picked up on the next cycle"),
		)
		return nil
	}

	cromwell.OldestFirst(records)
	enqueued, duplicates := 0, 0
	for _, record := range records {
		added, err := h.queue.TryEnqueue(ctx, record.ID)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
				logger.Debug("discovery cycle interrupted by shutdown", logging.Int("remaining", len(records)-enqueued-duplicates))
				break
			}
			return err
		}
		if !added {
			duplicates++
			logger.Debug("workflow already queued or in flight", logging.String(logging.FieldWorkflowID, record.ID))
			continue
		}
		enqueued++
		attrs := []logging.Attr{logging.String(logging.FieldWorkflowID, record.ID)}
		if bundle := record.BundleUUID(); bundle != "" {
			attrs = append(attrs, logging.String("bundle_uuid", bundle))
		}
		if version := record.BundleVersion(); version != "" {
			attrs = append(attrs, logging.String("bundle_version", version))
		}
		logger.Info("workflow enqueued", logging.Args(attrs...)...)
	}
	h.stats.recordCycle(len(records), enqueued, duplicates, false)

	logger.Info("discovery cycle finished",
		logging.Int("discovered", len(records)),
		logging.Int("enqueued", enqueued),
		logging.Int("duplicates", duplicates),
		logging.Int("queued", h.queue.Len()),
		logging.Duration("elapsed", time.Since(began)),
	)
	return nil
}
