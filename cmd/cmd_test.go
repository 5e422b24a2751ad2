package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Rorical/RoriAgent/internal/config"
)

const testConfig = `profiles:
  home:
    model: gpt-4o-mini
  work:
    api_key: sk-work
    base_url: https://llm.example.com/v1
    model: gpt-4o
active_profile: home
`

func writeConfig(t *testing.T) string {
	t.Helper()
	t.Setenv("RORIAGENT_API_KEY", "")
	t.Setenv("RORIAGENT_MODEL", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestProfileList(t *testing.T) {
	path := writeConfig(t)
	out, err := run(t, "--config", path, "profile", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"Active Profile: home", "home (active)", "Base URL: https://llm.example.com/v1", "API Key: Yes"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "  home") > strings.Index(out, "  work") {
		t.Errorf("profiles not sorted:\n%s", out)
	}
}

func TestProfileShowHidesKey(t *testing.T) {
	path := writeConfig(t)
	out, err := run(t, "--config", path, "profile", "show", "work")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if strings.Contains(out, "sk-work") || !strings.Contains(out, "Set (hidden for security)") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	_, err = run(t, "--config", path, "profile", "show", "missing")
	if !errors.Is(err, config.ErrProfileNotFound) {
		t.Fatalf("show missing = %v, want ErrProfileNotFound", err)
	}
}

func TestProfileSwitchSaves(t *testing.T) {
	path := writeConfig(t)
	if _, err := run(t, "--config", path, "profile", "switch", "work"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ActiveProfile != "work" || cfg.GetModel() != "gpt-4o" {
		t.Fatalf("active = %q model = %q", cfg.ActiveProfile, cfg.GetModel())
	}

	if _, err := run(t, "--config", path, "profile", "switch", "nope"); !errors.Is(err, config.ErrProfileNotFound) {
		t.Fatalf("switch to unknown profile = %v", err)
	}
}
