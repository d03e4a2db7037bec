package logging

import (
	"context"
	"log/slog"

	"falcon/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldWorker names the dispatch worker (handler, igniter-N) emitting the line.
	FieldWorker = "worker"
	// FieldWorkflowID is the standardized key for engine workflow identifiers.
	FieldWorkflowID = "workflow_id"
	// FieldCycleID correlates every line of one discovery cycle.
	FieldCycleID = "cycle_id"
	// FieldSessionID identifies one dispatcher process run.
	FieldSessionID = "session_id"
	// FieldOutcome records the result of a dispatch attempt.
	FieldOutcome = "outcome"
	// FieldEventType is a stable machine-readable label for the logged event.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for the consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if worker, ok := services.WorkerFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldWorker, worker))
	}
	if id, ok := services.WorkflowIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldWorkflowID, id))
	}
	if cid, ok := services.CycleIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCycleID, cid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
