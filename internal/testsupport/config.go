package testsupport

import (
	"path/filepath"
	"testing"

	"falcon/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with a unique temp log directory per test.
// Intervals default to one second so dispatch loops finish quickly; options
// override anything else.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Engine.URL = "http://127.0.0.1:1/api/workflows/v1"
	cfgVal.Engine.RequestTimeout = 5
	cfgVal.Discovery.QueueUpdateInterval = 1
	cfgVal.Dispatch.WorkflowStartInterval = 1
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithEngineURL points the test config at a fake engine, usually an httptest server.
func WithEngineURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.URL = url
	}
}

// WithIgniters sets the igniter pool size.
func WithIgniters(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dispatch.Igniters = n
	}
}

// WithIntervals overrides the discovery and start intervals, in seconds.
func WithIntervals(queueUpdate, workflowStart int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Discovery.QueueUpdateInterval = queueUpdate
		b.cfg.Dispatch.WorkflowStartInterval = workflowStart
	}
}

// WithQueueMaxSize bounds the work queue.
func WithQueueMaxSize(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dispatch.QueueMaxSize = n
	}
}

// WithServiceAccount switches the config to service account auth using a key
// file written under the test's temp directory.
func WithServiceAccount(collection string, keyJSON []byte) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "key.json")
		WriteFile(b.t, path, keyJSON)
		b.cfg.Engine.AuthMode = config.AuthModeServiceAccount
		b.cfg.Engine.CollectionName = collection
		b.cfg.Engine.ServiceAccountKey = path
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
