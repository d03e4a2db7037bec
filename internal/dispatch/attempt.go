package dispatch

import (
	"errors"
	"time"

	"falcon/internal/services"
)

// Outcome is the result class of one start attempt.
type Outcome string

const (
	OutcomeStarted  Outcome = "started"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// Attempt describes one start call made by an igniter.
type Attempt struct {
	WorkflowID string
	Worker     string
	StartedAt  time.Time
	Duration   time.Duration
	Outcome    Outcome
	Err        error
}

// OutcomeOf maps a start error to its outcome. A rejection means the workflow
// left the startable state between discovery and dispatch and is not a failure.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeStarted
	case errors.Is(err, services.ErrEngineRejected):
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}
