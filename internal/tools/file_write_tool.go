package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Rorical/RoriAgent/internal/approval"
)

const previewLimit = 2000

// FileWriteTool creates or replaces a file once the user saves it.
type FileWriteTool struct {
	approver Approver
	root     string
}

func NewFileWriteTool(approver Approver, root string) *FileWriteTool {
	return &FileWriteTool{approver: approver, root: root}
}

func (f *FileWriteTool) Name() string {
	return "write_file"
}

func (f *FileWriteTool) Description() string {
	return "Create a new file or replace an existing one with the given content. The user reviews the change before it is saved."
}

func (f *FileWriteTool) Parameters() map[string]any {
	return map[string]any{
		"path": map[string]any{
			"type":        "string",
			"description": "Relative path to the file from the working directory",
		},
		"content": map[string]any{
			"type":        "string",
			"description": "Complete content to write to the file",
		},
	}
}

func (f *FileWriteTool) RequiredParameters() []string {
	return []string{"path", "content"}
}

// fileChange is the payload of the tool approval request.
type fileChange struct {
	Tool    string `json:"tool"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (f *FileWriteTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	content, err := stringArg(args, "content")
	if err != nil {
		return nil, err
	}
	fullPath, err := resolvePath(f.root, path)
	if err != nil {
		return nil, err
	}

	change := fileChange{Tool: approval.ToolNewFileCreated, Path: path, Content: content}
	info, err := os.Stat(fullPath)
	switch {
	case err == nil && info.IsDir():
		return nil, fmt.Errorf("path is a directory: %s", path)
	case err == nil:
		change.Tool = approval.ToolEditedExistingFile
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to access path: %w", err)
	}
	if len(change.Content) > previewLimit {
		change.Content = change.Content[:previewLimit]
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("failed to encode change: %w", err)
	}

	decision, err := f.approver.Approve(ctx, approval.KindTool, string(payload))
	if err != nil {
		return nil, fmt.Errorf("approval failed: %w", err)
	}
	if !decision.Approved() {
		return map[string]any{
			"path":    path,
			"output":  "User rejected the file change",
			"aborted": true,
		}, nil
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	lines := strings.Count(content, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		lines++
	}
	return map[string]any{
		"path":    path,
		"lines":   lines,
		"bytes":   len(content),
		"created": change.Tool == approval.ToolNewFileCreated,
	}, nil
}
