package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"falcon/internal/services"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateReportsInvalidConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(env.configPath, []byte("[dispatch]\nigniters = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, env.configPath); err == nil {
		t.Fatal("expected validation failure")
	}
}

func TestWorkflowsCommandTable(t *testing.T) {
	env := setupCLITestEnv(t,
		queryResult{ID: "wf-new", Name: "ss2", Status: "On Hold", Submission: "2024-03-02T10:00:00.000Z"},
		queryResult{ID: "wf-old", Name: "ss2", Status: "On Hold", Submission: "2024-03-01T10:00:00.000Z",
			Labels: map[string]string{"bundle-uuid": "b-1", "bundle-version": "v3"}},
	)

	out, _, err := runCLI(t, []string{"workflows"}, env.configPath)
	if err != nil {
		t.Fatalf("workflows: %v", err)
	}
	requireContains(t, out, "b-1@v3")
	requireContains(t, out, `2 workflow(s) with status "On Hold"`)
	if strings.Index(out, "wf-old") > strings.Index(out, "wf-new") {
		t.Fatalf("expected oldest workflow first:\n%s", out)
	}
}

func TestWorkflowsCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t, queryResult{ID: "wf-1", Status: "On Hold"})

	out, _, err := runCLI(t, []string{"workflows", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("workflows --json: %v", err)
	}
	var views []workflowView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if len(views) != 1 || views[0].ID != "wf-1" || views[0].Status != "On Hold" {
		t.Fatalf("unexpected views %+v", views)
	}
}

func TestWorkflowsCommandEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"workflows"}, env.configPath)
	if err != nil {
		t.Fatalf("workflows: %v", err)
	}
	requireContains(t, out, `No workflows with status "On Hold"`)
}

func TestReleaseCommandOutcomes(t *testing.T) {
	env := setupCLITestEnv(t, queryResult{ID: "wf-1", Status: "On Hold"})

	out, _, err := runCLI(t, []string{"release", "wf-1", "wf-gone"}, env.configPath)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	requireContains(t, out, "[OK] released")
	requireContains(t, out, "[WARN] not startable")
	if got := env.engine.releasedIDs(); len(got) != 1 || got[0] != "wf-1" {
		t.Fatalf("unexpected releases %v", got)
	}

	env.engine.broken["wf-boom"] = true
	out, _, err = runCLI(t, []string{"release", "wf-boom"}, env.configPath)
	if err == nil {
		t.Fatal("expected engine failure to fail the command")
	}
	requireContains(t, out, "[ERROR]")
}

func TestCheckCommand(t *testing.T) {
	env := setupCLITestEnv(t, queryResult{ID: "wf-1", Status: "On Hold"})

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "== Preflight ==")
	requireContains(t, out, "Log directory:")
	requireContains(t, out, "[OK] reachable (1 On Hold workflows)")

	env.engine.queryCode = http.StatusUnauthorized
	out, _, err = runCLI(t, []string{"check"}, env.configPath)
	if err == nil {
		t.Fatal("expected check to fail on rejected credentials")
	}
	requireContains(t, out, "credentials rejected")
}

func TestRunCommandExitsOnRejectedCredentials(t *testing.T) {
	env := setupCLITestEnv(t)
	env.engine.queryCode = http.StatusUnauthorized

	_, _, err := runCLI(t, []string{"run"}, env.configPath)
	if !errors.Is(err, services.ErrEngineAuth) {
		t.Fatalf("expected auth error from run, got %v", err)
	}
}
