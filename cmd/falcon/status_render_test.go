package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"falcon/internal/preflight"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Cromwell engine", statusError, "unreachable", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Cromwell engine:", "[ERROR] unreachable")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("wf-1", statusOK, "released", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestPreflightLines(t *testing.T) {
	lines := preflightLines([]preflight.Result{
		{Name: "Log directory", Passed: true, Detail: "/tmp (read/write ok)"},
		{Name: "Cromwell engine", Detail: "unreachable"},
	}, false)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[OK] /tmp") || !strings.Contains(lines[1], "[ERROR] unreachable") {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestRenderWorkflowTable(t *testing.T) {
	out := renderWorkflowTable([]workflowView{{ID: "wf-1", Status: "On Hold", BundleUUID: "b-1"}})
	for _, want := range []string{"ID", "Submitted", "wf-1", "b-1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in table:\n%s", want, out)
		}
	}
	if renderTable(nil, nil) != "" {
		t.Fatal("expected empty table without columns")
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
