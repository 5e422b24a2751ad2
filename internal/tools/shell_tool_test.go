package tools

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Rorical/RoriAgent/internal/approval"
)

func newShell(t *testing.T, a Approver) (*ShellTool, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	root := t.TempDir()
	return NewShellTool(a, root, zaptest.NewLogger(t)), root
}

func TestShellRunsApprovedCommand(t *testing.T) {
	a := &fakeApprover{action: approval.ActionApprove}
	sh, _ := newShell(t, a)

	out, err := sh.Execute(context.Background(), map[string]any{"command": "echo hello; echo oops >&2"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	res := out.(map[string]any)
	if res["success"] != true || res["exit_code"] != 0 {
		t.Fatalf("result = %v", res)
	}
	if output := res["output"].(string); !strings.Contains(output, "hello\n") || !strings.Contains(output, "oops\n") {
		t.Fatalf("output = %q", output)
	}

	if len(a.asked) != 1 || a.asked[0].kind != approval.KindCommand || a.asked[0].payload != "echo hello; echo oops >&2" {
		t.Fatalf("asked = %+v", a.asked)
	}
	if len(a.streams) != 1 {
		t.Fatalf("opened %d streams, want 1", len(a.streams))
	}
	updates, closed := a.streams[0].state()
	if !closed || len(updates) == 0 {
		t.Fatalf("stream updates = %q, closed = %v", updates, closed)
	}
}

func TestShellRunsInRoot(t *testing.T) {
	a := &fakeApprover{action: approval.ActionApprove}
	sh, root := newShell(t, a)

	if _, err := sh.Execute(context.Background(), map[string]any{"command": "touch marker"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "marker")); err != nil {
		t.Fatalf("command did not run in root: %v", err)
	}
}

func TestShellRejectedCommandDoesNotRun(t *testing.T) {
	a := &fakeApprover{action: approval.ActionReject}
	sh, root := newShell(t, a)

	out, err := sh.Execute(context.Background(), map[string]any{"command": "touch marker"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.(map[string]any)["aborted"] != true {
		t.Fatalf("result = %v", out)
	}
	if _, err := os.Stat(filepath.Join(root, "marker")); !os.IsNotExist(err) {
		t.Fatalf("rejected command ran: %v", err)
	}
	if len(a.streams) != 0 {
		t.Fatal("output stream opened for a rejected command")
	}
}

func TestShellReportsExitCode(t *testing.T) {
	sh, _ := newShell(t, &fakeApprover{action: approval.ActionApprove})

	out, err := sh.Execute(context.Background(), map[string]any{"command": "exit 3"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	res := out.(map[string]any)
	if res["exit_code"] != 3 || res["success"] != false {
		t.Fatalf("result = %v", res)
	}
}

func TestShellAbortStopsCommand(t *testing.T) {
	a := &fakeApprover{action: approval.ActionApprove, abortOnOutput: true}
	sh, _ := newShell(t, a)

	start := time.Now()
	out, err := sh.Execute(context.Background(), map[string]any{"command": "echo started; sleep 10"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("aborted command ran for %v", elapsed)
	}
	res := out.(map[string]any)
	if res["aborted"] != true || res["success"] != false {
		t.Fatalf("result = %v", res)
	}
}

func TestShellTimeout(t *testing.T) {
	sh, _ := newShell(t, &fakeApprover{action: approval.ActionApprove})

	out, err := sh.Execute(context.Background(), map[string]any{"command": "sleep 10", "timeout": 0.2})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res := out.(map[string]any); res["timed_out"] != true {
		t.Fatalf("result = %v", res)
	}
}

func TestShellRequiresCommand(t *testing.T) {
	sh, _ := newShell(t, &fakeApprover{action: approval.ActionApprove})
	if _, err := sh.Execute(context.Background(), map[string]any{"command": 5.0}); err == nil {
		t.Fatal("non-string command accepted")
	}
}

func TestStreamWriterKeepsTail(t *testing.T) {
	s := &fakeStream{aborted: make(chan struct{})}
	w := &streamWriter{stream: s, limit: 8}
	w.Write([]byte("0123456789"))
	w.Write([]byte("ab"))

	out, truncated := w.result()
	if out != "456789ab" || !truncated {
		t.Fatalf("result = %q, %v", out, truncated)
	}
	if updates, _ := s.state(); len(updates) != 1 || updates[0] != "23456789" {
		t.Fatalf("updates = %q", updates)
	}
}
