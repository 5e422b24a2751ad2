package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Rorical/RoriAgent/internal/approval"
)

// Approver asks the user before a tool acts.
type Approver interface {
	// Approve blocks until the user decides on a question of kind, or
	// ctx ends.
	Approve(ctx context.Context, kind approval.Kind, payload string) (approval.Decision, error)
	// StreamOutput shows the output of a running command and lets the
	// user abort it.
	StreamOutput(ctx context.Context) OutputStream
}

// OutputStream is a live view of one command's output.
type OutputStream interface {
	Update(output string)
	// Aborted is closed when the user stops the command.
	Aborted() <-chan struct{}
	Close()
}

// resolvePath joins a model-supplied relative path onto root.
func resolvePath(root, path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("path must be relative, not absolute")
	}
	clean := filepath.Clean(path)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path cannot leave the working directory")
	}
	return filepath.Join(root, clean), nil
}
