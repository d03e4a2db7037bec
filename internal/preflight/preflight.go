package preflight

import (
	"context"

	"falcon/internal/config"
	"falcon/internal/daemon"
	"falcon/internal/services/cromwell"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check that applies to cfg. The engine
// check uses client when non-nil and otherwise builds one from cfg.
func RunAll(ctx context.Context, cfg *config.Config, client Querier) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	if cfg.Engine.UsesServiceAccount() {
		results = append(results, CheckServiceAccountKey(cfg.Engine))
	}

	if client == nil {
		built, err := cromwell.NewFromConfig(cfg)
		if err != nil {
			return append(results, Result{Name: engineCheckName, Detail: err.Error()})
		}
		client = built
	}
	results = append(results, CheckEngine(ctx, client, daemon.DiscoveryFilter(cfg)))

	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
