package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("RORIAGENT_HOME", home)
	t.Setenv("RORIAGENT_API_KEY", "")
	t.Setenv("RORIAGENT_MODEL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := filepath.Join(home, ".roriagent", "config.yaml")
	if cfg.Path() != want {
		t.Fatalf("path = %q, want %q", cfg.Path(), want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.ActiveProfile != "default" || cfg.GetModel() != DefaultModel {
		t.Fatalf("active=%q model=%q", cfg.ActiveProfile, cfg.GetModel())
	}
	if cfg.IsValid() {
		t.Fatal("default config without api key reported valid")
	}
	if cfg.Terminal.MaxSequenceLen != 64 || cfg.BackslashEnterWindow().Milliseconds() != 15 || cfg.EscapeTimeout().Milliseconds() != 50 {
		t.Fatalf("terminal defaults = %+v", cfg.Terminal)
	}
	if cfg.Logging.File != filepath.Join(home, ".roriagent", "roriagent.log") {
		t.Fatalf("log file = %q", cfg.Logging.File)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
profiles:
  work:
    api_key: sk-work
    base_url: https://llm.internal/v1
    model: gpt-4.1
active_profile: work
terminal:
  backslash_enter_window_ms: 40
  option_as_meta: true
metrics:
  listen: 127.0.0.1:9464
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RORIAGENT_API_KEY", "")
	t.Setenv("RORIAGENT_MODEL", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GetAPIKey() != "sk-work" || cfg.GetBaseURL() != "https://llm.internal/v1" || cfg.GetModel() != "gpt-4.1" {
		t.Fatalf("profile not loaded: %q %q %q", cfg.GetAPIKey(), cfg.GetBaseURL(), cfg.GetModel())
	}
	if cfg.BackslashEnterWindow().Milliseconds() != 40 || !cfg.Terminal.OptionAsMeta {
		t.Fatalf("terminal = %+v", cfg.Terminal)
	}
	if cfg.Terminal.EscapeTimeoutMs != 50 {
		t.Fatalf("escape timeout default not applied: %d", cfg.Terminal.EscapeTimeoutMs)
	}
	if cfg.Metrics.Listen != "127.0.0.1:9464" {
		t.Fatalf("metrics listen = %q", cfg.Metrics.Listen)
	}
}

func TestEnvOverridesAreNotSaved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("RORIAGENT_API_KEY", "sk-env")
	t.Setenv("RORIAGENT_MODEL", "gpt-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GetAPIKey() != "sk-env" || cfg.GetModel() != "gpt-env" {
		t.Fatalf("env not applied: %q %q", cfg.GetAPIKey(), cfg.GetModel())
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	t.Setenv("RORIAGENT_API_KEY", "")
	t.Setenv("RORIAGENT_MODEL", "")
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.GetAPIKey() != "" {
		t.Fatalf("env api key was persisted: %q", reloaded.GetAPIKey())
	}
}

func TestProfileLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("RORIAGENT_API_KEY", "")
	t.Setenv("RORIAGENT_MODEL", "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg.SetProfile("work", Profile{APIKey: "sk-1", Model: "gpt-4.1"})
	if err := cfg.SwitchProfile("work"); err != nil {
		t.Fatalf("SwitchProfile: %v", err)
	}
	if !cfg.IsValid() {
		t.Fatal("work profile not valid")
	}
	if err := cfg.DeleteProfile("work"); err == nil {
		t.Fatal("deleted the active profile")
	}
	if err := cfg.SwitchProfile("missing"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("SwitchProfile(missing) = %v", err)
	}
	if err := cfg.DeleteProfile("default"); err != nil {
		t.Fatalf("DeleteProfile: %v", err)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded.ProfileNames(); len(got) != 1 || got[0] != "work" || reloaded.ActiveProfile != "work" {
		t.Fatalf("reloaded profiles = %v active = %q", got, reloaded.ActiveProfile)
	}
}
