package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Rorical/RoriAgent/internal/approval"
	"github.com/Rorical/RoriAgent/internal/logging"
)

const (
	defaultShellTimeout = 30 * time.Second
	maxShellTimeout     = 300 * time.Second
	maxShellOutput      = 32 << 10
	streamInterval      = 50 * time.Millisecond
)

// ShellTool runs shell commands after the user approves them, streaming
// their output back while they run.
type ShellTool struct {
	approver Approver
	shell    []string
	root     string
	log      *zap.Logger
}

func NewShellTool(approver Approver, root string, logger *zap.Logger) *ShellTool {
	shell := []string{"sh", "-c"}
	if runtime.GOOS == "windows" {
		shell = []string{"cmd", "/c"}
	}
	return &ShellTool{
		approver: approver,
		shell:    shell,
		root:     root,
		log:      logging.OrNop(logger).Named("shell"),
	}
}

func (s *ShellTool) Name() string {
	return "shell"
}

func (s *ShellTool) Description() string {
	return "Execute a shell command in the working directory. The user approves every command and may abort it while it runs."
}

func (s *ShellTool) Parameters() map[string]any {
	return map[string]any{
		"command": map[string]any{
			"type":        "string",
			"description": "The shell command to execute",
		},
		"timeout": map[string]any{
			"type":        "number",
			"description": "Timeout in seconds (default: 30, max: 300)",
		},
	}
}

func (s *ShellTool) RequiredParameters() []string {
	return []string{"command"}
}

func (s *ShellTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	command, err := stringArg(args, "command")
	if err != nil {
		return nil, err
	}

	timeout := defaultShellTimeout
	if t := numberArg(args, "timeout", 0); t > 0 {
		timeout = min(time.Duration(t*float64(time.Second)), maxShellTimeout)
	}

	decision, err := s.approver.Approve(ctx, approval.KindCommand, command)
	if err != nil {
		return nil, fmt.Errorf("approval failed: %w", err)
	}
	if !decision.Approved() {
		return map[string]any{
			"command": command,
			"output":  "User rejected command execution",
			"aborted": true,
		}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stream := s.approver.StreamOutput(ctx)
	defer stream.Close()

	var aborted atomic.Bool
	go func() {
		select {
		case <-stream.Aborted():
			aborted.Store(true)
			cancel()
		case <-runCtx.Done():
		}
	}()

	out := &streamWriter{stream: stream, limit: maxShellOutput}
	cmd := exec.CommandContext(runCtx, s.shell[0], append(s.shell[1:], command)...)
	cmd.Dir = s.root
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = time.Second

	s.log.Info("running command", zap.String("command", command), zap.Duration("timeout", timeout))
	runErr := cmd.Run()
	output, truncated := out.result()

	result := map[string]any{
		"command": command,
		"output":  output,
		"success": runErr == nil,
	}
	if truncated {
		result["truncated"] = true
	}
	switch {
	case aborted.Load():
		result["aborted"] = true
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result["timed_out"] = true
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		result["exit_code"] = 0
	case errors.As(runErr, &exitErr):
		result["exit_code"] = exitErr.ExitCode()
		result["error"] = runErr.Error()
	default:
		result["error"] = runErr.Error()
	}
	s.log.Info("command finished", zap.String("command", command),
		zap.Any("exit_code", result["exit_code"]), zap.Bool("aborted", aborted.Load()))
	return result, nil
}

// streamWriter collects combined output, keeping the last limit bytes,
// and forwards it to the stream at most once per streamInterval.
type streamWriter struct {
	stream OutputStream
	limit  int

	mu        sync.Mutex
	buf       []byte
	truncated bool
	last      time.Time
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.buf = append(w.buf, p...)
	if over := len(w.buf) - w.limit; over > 0 {
		w.buf = append(w.buf[:0], w.buf[over:]...)
		w.truncated = true
	}
	var snapshot string
	if now := time.Now(); now.Sub(w.last) >= streamInterval {
		w.last = now
		snapshot = string(w.buf)
	}
	w.mu.Unlock()

	if snapshot != "" {
		w.stream.Update(snapshot)
	}
	return len(p), nil
}

func (w *streamWriter) result() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.buf), w.truncated
}
