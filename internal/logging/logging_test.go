package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "agent.log")
	logger, err := New(path, "debug")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Named("bridge").Debug("delivered")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "bridge") || !strings.Contains(string(data), "delivered") {
		t.Fatalf("log file = %q", data)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "a.log"), "loud"); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}

func TestEmptyPathDisablesLogging(t *testing.T) {
	logger, err := New("", "info")
	if err != nil {
		t.Fatal(err)
	}
	if logger.Core().Enabled(0) {
		t.Fatal("logger is enabled")
	}
	if OrNop(nil) == nil {
		t.Fatal("OrNop returned nil")
	}
}
