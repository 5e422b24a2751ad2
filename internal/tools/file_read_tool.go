package tools

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

const (
	defaultMaxLines = 200
	maxReadLines    = 2000
)

// FileReadTool reads files and lists directories. It never asks for
// approval.
type FileReadTool struct {
	root string
}

func NewFileReadTool(root string) *FileReadTool {
	return &FileReadTool{root: root}
}

func (f *FileReadTool) Name() string {
	return "read_file"
}

func (f *FileReadTool) Description() string {
	return "Read a file, optionally a range of its lines, or list a directory."
}

func (f *FileReadTool) Parameters() map[string]any {
	return map[string]any{
		"path": map[string]any{
			"type":        "string",
			"description": "Relative path to the file or directory from the working directory",
		},
		"lines_from": map[string]any{
			"type":        "number",
			"description": "First line to return (1-based, optional)",
		},
		"lines_to": map[string]any{
			"type":        "number",
			"description": "Last line to return (1-based, inclusive, optional)",
		},
		"max_lines": map[string]any{
			"type":        "number",
			"description": "Maximum number of lines to return (default: 200, max: 2000)",
		},
	}
}

func (f *FileReadTool) RequiredParameters() []string {
	return []string{"path"}
}

func (f *FileReadTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	fullPath, err := resolvePath(f.root, path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("path does not exist: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}
	if info.IsDir() {
		return listDirectory(fullPath, path)
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if isBinary(head[:n]) {
		return map[string]any{
			"path":  path,
			"type":  "binary",
			"size":  info.Size(),
			"error": "cannot display binary file",
		}, nil
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	from := max(int(numberArg(args, "lines_from", 1)), 1)
	to := int(numberArg(args, "lines_to", 0))
	maxLines := min(max(int(numberArg(args, "max_lines", defaultMaxLines)), 1), maxReadLines)

	var (
		out       []string
		lineNo    int
		truncated bool
	)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lineNo++
		if lineNo < from {
			continue
		}
		if to > 0 && lineNo > to {
			break
		}
		if len(out) == maxLines {
			truncated = true
			break
		}
		out = append(out, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	result := map[string]any{
		"path":       path,
		"type":       "file",
		"lines_from": from,
		"lines_read": len(out),
		"content":    strings.Join(out, "\n"),
	}
	if truncated {
		result["truncated"] = true
	}
	return result, nil
}

func isBinary(head []byte) bool {
	return bytes.IndexByte(head, 0) >= 0 || !utf8.Valid(trimPartialRune(head))
}

// trimPartialRune drops a multi-byte rune cut off by the read boundary.
func trimPartialRune(b []byte) []byte {
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			break
		}
	}
	return b
}

func listDirectory(fullPath, path string) (any, error) {
	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var dirs, files []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name()+"/")
		} else {
			files = append(files, entry.Name())
		}
	}
	return map[string]any{
		"path":        path,
		"type":        "directory",
		"directories": dirs,
		"files":       files,
	}, nil
}
