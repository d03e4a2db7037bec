package dispatch

import (
	"context"

	"falcon/internal/services/cromwell"
)

// Querier lists workflows matching a discovery filter.
type Querier interface {
	Query(ctx context.Context, filter cromwell.Filter) ([]cromwell.WorkflowRecord, error)
}

// Starter releases a single held workflow.
type Starter interface {
	Start(ctx context.Context, id string) error
}

// Engine is the part of the Cromwell client the dispatcher depends on.
type Engine interface {
	Querier
	Starter
}

var _ Engine = (*cromwell.Client)(nil)
