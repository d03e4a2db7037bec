package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"falcon/internal/config"
	"falcon/internal/services"
	"falcon/internal/services/cromwell"
)

const engineCheckName = "Cromwell engine"

// Querier is the engine call the reachability check issues.
type Querier interface {
	Query(ctx context.Context, filter cromwell.Filter) ([]cromwell.WorkflowRecord, error)
}

// CheckEngine runs one discovery query and reports whether the engine is
// reachable and accepts the configured credentials. It uses a 30-second
// timeout and a single attempt.
func CheckEngine(ctx context.Context, client Querier, filter cromwell.Filter) Result {
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	records, err := client.Query(checkCtx, filter)
	if err != nil {
		return Result{Name: engineCheckName, Detail: summarizeEngineError(err)}
	}
	return Result{
		Name:   engineCheckName,
		Passed: true,
		Detail: fmt.Sprintf("reachable (%d %s workflows)", len(records), filter.Status),
	}
}

// CheckServiceAccountKey verifies that the configured key can be read and
// parsed into token credentials.
func CheckServiceAccountKey(engine config.Engine) Result {
	const name = "Service account key"

	data, err := engine.ServiceAccountKeyJSON()
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if _, err := cromwell.NewServiceAccountAuth(data); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unusable key (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: "key parsed"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeEngineError produces a human-readable summary for engine check failures.
func summarizeEngineError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "query timed out (engine unresponsive)"
	case errors.Is(err, services.ErrEngineAuth):
		return fmt.Sprintf("credentials rejected (%v)", err)
	case errors.Is(err, services.ErrEngineUnavailable):
		return fmt.Sprintf("unreachable (%v)", err)
	case errors.Is(err, services.ErrEngineProtocol):
		return fmt.Sprintf("unexpected response (%v)", err)
	default:
		return err.Error()
	}
}
