package services

import "context"

type contextKey string

const (
	workflowIDKey contextKey = "workflow_id"
	workerKey     contextKey = "worker"
	cycleIDKey    contextKey = "cycle_id"
)

// WithWorkflowID annotates context with the engine workflow identifier.
func WithWorkflowID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, workflowIDKey, id)
}

// WorkflowIDFromContext extracts the workflow identifier if present.
func WorkflowIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(workflowIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithWorker annotates context with the dispatch worker name (handler, igniter-1, ...).
func WithWorker(ctx context.Context, worker string) context.Context {
	if worker == "" {
		return ctx
	}
	return context.WithValue(ctx, workerKey, worker)
}

// WorkerFromContext returns the worker name if present.
func WorkerFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(workerKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithCycleID annotates context with the correlation identifier of one discovery cycle.
func WithCycleID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, cycleIDKey, id)
}

// CycleIDFromContext extracts the discovery cycle identifier if present.
func CycleIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(cycleIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
