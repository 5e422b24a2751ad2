package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultModel   = "gpt-4o-mini"
	defaultProfile = "default"
)

var ErrProfileNotFound = errors.New("profile not found")

type Profile struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
}

type TerminalConfig struct {
	MaxSequenceLen         int  `yaml:"max_sequence_len"`
	BackslashEnterWindowMs int  `yaml:"backslash_enter_window_ms"`
	EscapeTimeoutMs        int  `yaml:"escape_timeout_ms"`
	OptionAsMeta           bool `yaml:"option_as_meta"`
	KittyKeyboard          bool `yaml:"kitty_keyboard"`
}

type ApprovalConfig struct {
	PermissionsFile string `yaml:"permissions_file"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type Config struct {
	Profiles      map[string]Profile `yaml:"profiles"`
	ActiveProfile string             `yaml:"active_profile"`
	Terminal      TerminalConfig     `yaml:"terminal"`
	Approval      ApprovalConfig     `yaml:"approval"`
	Logging       LoggingConfig      `yaml:"logging"`
	Metrics       MetricsConfig      `yaml:"metrics"`

	path           string
	currentProfile *Profile
}

// LoadConfig reads config.yaml from the config directory, creating a
// default one on first run.
func LoadConfig() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	return Load(filepath.Join(dir, "config.yaml"))
}

// Load reads the config at path, creating a default one if it is absent.
func Load(path string) (*Config, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config, err := loadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	config.path = path
	config.applyDefaults()

	if err := config.setCurrentProfile(); err != nil {
		return nil, fmt.Errorf("failed to set current profile: %w", err)
	}
	config.applyEnv()
	return config, nil
}

// Dir is $RORIAGENT_HOME/.roriagent, or ~/.roriagent.
func Dir() (string, error) {
	base := os.Getenv("RORIAGENT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = home
	}
	return filepath.Join(base, ".roriagent"), nil
}

func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return createDefaultConfig(path)
	}
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &config, nil
}

func createDefaultConfig(path string) (*Config, error) {
	config := &Config{
		Profiles: map[string]Profile{
			defaultProfile: {Model: DefaultModel},
		},
		ActiveProfile: defaultProfile,
		path:          path,
	}
	config.applyDefaults()
	if err := config.Save(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyDefaults() {
	dir := filepath.Dir(c.path)
	if c.Terminal.MaxSequenceLen == 0 {
		c.Terminal.MaxSequenceLen = 64
	}
	if c.Terminal.BackslashEnterWindowMs == 0 {
		c.Terminal.BackslashEnterWindowMs = 15
	}
	if c.Terminal.EscapeTimeoutMs == 0 {
		c.Terminal.EscapeTimeoutMs = 50
	}
	if c.Approval.PermissionsFile == "" {
		c.Approval.PermissionsFile = filepath.Join(dir, "permissions.yaml")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(dir, "roriagent.log")
	}
}

// applyEnv overrides the active profile for this process only; Save
// never writes these values.
func (c *Config) applyEnv() {
	if key := os.Getenv("RORIAGENT_API_KEY"); key != "" {
		c.currentProfile.APIKey = key
	}
	if model := os.Getenv("RORIAGENT_MODEL"); model != "" {
		c.currentProfile.Model = model
	}
}

func (c *Config) Path() string {
	return c.path
}

func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) IsValid() bool {
	return c.currentProfile != nil && c.currentProfile.APIKey != ""
}

func (c *Config) GetAPIKey() string {
	if c.currentProfile == nil {
		return ""
	}
	return c.currentProfile.APIKey
}

func (c *Config) GetModel() string {
	if c.currentProfile == nil || c.currentProfile.Model == "" {
		return DefaultModel
	}
	return c.currentProfile.Model
}

func (c *Config) GetBaseURL() string {
	if c.currentProfile == nil {
		return ""
	}
	return c.currentProfile.BaseURL
}

// ProfileNames returns the profile names sorted.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetProfile adds or replaces a profile.
func (c *Config) SetProfile(name string, p Profile) {
	if c.Profiles == nil {
		c.Profiles = make(map[string]Profile)
	}
	c.Profiles[name] = p
	if name == c.ActiveProfile {
		c.currentProfile = &p
	}
}

func (c *Config) SwitchProfile(name string) error {
	p, ok := c.Profiles[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	c.ActiveProfile = name
	c.currentProfile = &p
	return nil
}

func (c *Config) DeleteProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	if name == c.ActiveProfile {
		return fmt.Errorf("cannot delete the active profile %q", name)
	}
	delete(c.Profiles, name)
	return nil
}

func (c *Config) BackslashEnterWindow() time.Duration {
	return time.Duration(c.Terminal.BackslashEnterWindowMs) * time.Millisecond
}

func (c *Config) EscapeTimeout() time.Duration {
	return time.Duration(c.Terminal.EscapeTimeoutMs) * time.Millisecond
}

func (c *Config) setCurrentProfile() error {
	if len(c.Profiles) == 0 {
		return fmt.Errorf("no profiles defined")
	}

	profile, exists := c.Profiles[c.ActiveProfile]
	if !exists {
		// Fall back to the first profile by name.
		c.ActiveProfile = c.ProfileNames()[0]
		profile = c.Profiles[c.ActiveProfile]
	}
	c.currentProfile = &profile
	return nil
}
