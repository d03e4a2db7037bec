package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"falcon/internal/config"
	"falcon/internal/testsupport"
)

type queryResult struct {
	ID         string            `json:"id"`
	Name       string            `json:"name,omitempty"`
	Status     string            `json:"status"`
	Submission string            `json:"submission,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
}

// fakeCromwell serves the two workflow endpoints falcon calls.
type fakeCromwell struct {
	mu        sync.Mutex
	held      []queryResult
	released  []string
	queryCode int
	broken    map[string]bool
}

func (f *fakeCromwell) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/api/workflows/v1/")
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && path == "query":
		if f.queryCode != 0 {
			w.WriteHeader(f.queryCode)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": f.held, "totalResultsCount": len(f.held)})
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/releaseHold"):
		id := strings.TrimSuffix(path, "/releaseHold")
		if f.broken[id] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		for i, rec := range f.held {
			if rec.ID == id {
				f.held = append(f.held[:i], f.held[i+1:]...)
				f.released = append(f.released, id)
				_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "status": "Submitted"})
				return
			}
		}
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "fail",
			"message": "Couldn't change status of workflow " + id + " to 'Submitted' because the workflow is not in 'On Hold' state",
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeCromwell) releasedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.released...)
}

type cliTestEnv struct {
	cfg        *config.Config
	engine     *fakeCromwell
	configPath string
}

func setupCLITestEnv(t *testing.T, held ...queryResult) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{"CONFIG_PATH", "CROMWELL_URL", "CROMWELL_USER", "CROMWELL_PASSWORD", "caas_key", "CAAS_KEY"} {
		t.Setenv(key, "")
	}

	engine := &fakeCromwell{held: held, broken: map[string]bool{}}
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithEngineURL(srv.URL+"/api/workflows/v1"))
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, engine: engine, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
