package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration     = errors.New("configuration error")
	ErrEngineAuth        = errors.New("engine authentication failed")
	ErrEngineUnavailable = errors.New("engine unavailable")
	ErrEngineProtocol    = errors.New("engine protocol error")
	ErrEngineRejected    = errors.New("engine rejected request")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrEngineUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether a worker error must stop the whole process.
// Credential and configuration failures do not heal on the next cycle.
func IsFatal(err error) bool {
	return errors.Is(err, ErrEngineAuth) || errors.Is(err, ErrConfiguration)
}

// Classify maps an error to the short label used in log event types.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConfiguration):
		return "config_error"
	case errors.Is(err, ErrEngineAuth):
		return "engine_auth_error"
	case errors.Is(err, ErrEngineRejected):
		return "engine_rejected"
	case errors.Is(err, ErrEngineProtocol):
		return "engine_protocol_error"
	default:
		return "engine_unavailable"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
