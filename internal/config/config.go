// Package config loads the studio configuration from YAML, a .env file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"garment-studio/pkg/colorutil"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppName names the configuration directory.
const AppName = "garment-studio"

// Environment overrides applied after the file is read.
const (
	EnvTenantURL = "GARMENT_TENANT_URL"
	EnvLogLevel  = "GARMENT_LOG_LEVEL"
	EnvToken     = "GARMENT_TOKEN"
)

// Config is the complete studio configuration.
type Config struct {
	Tenant  TenantConfig  `yaml:"tenant"`
	Session SessionConfig `yaml:"session"`
	Submit  SubmitConfig  `yaml:"submit"`
	Brush   BrushConfig   `yaml:"brush"`
	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
}

// TenantConfig locates the tenant service.
type TenantConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig bounds the editing session.
type SessionConfig struct {
	MaxSlots     int `yaml:"max_slots"`
	HistoryLimit int `yaml:"history_limit"`
}

// SubmitConfig controls submission and polling.
type SubmitConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxAttempts   int           `yaml:"max_attempts"`
	OutputWidth   int           `yaml:"output_width"`
	OutputHeight  int           `yaml:"output_height"`
	RequirePrompt bool          `yaml:"require_prompt"`
}

// BrushConfig holds the initial brush settings.
type BrushConfig struct {
	Tool  string `yaml:"tool"`
	Size  int    `yaml:"size"`
	Color string `yaml:"color"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StoreConfig selects the local task history backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite or memory
	Path   string `yaml:"path"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Tenant: TenantConfig{
			URL:     "http://localhost:8000",
			Timeout: 60 * time.Second,
		},
		Session: SessionConfig{
			MaxSlots:     4,
			HistoryLimit: 50,
		},
		Submit: SubmitConfig{
			PollInterval:  5 * time.Second,
			MaxAttempts:   60,
			OutputWidth:   800,
			OutputHeight:  600,
			RequirePrompt: true,
		},
		Brush: BrushConfig{
			Tool:  "paint",
			Size:  10,
			Color: "#ff0000",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
	}
}

// Dir returns the configuration directory, honoring XDG_CONFIG_HOME.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// DefaultPath returns the path of config.yaml inside Dir.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads configuration from path. A missing file yields the defaults.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads .env files into the process environment without overriding
// variables that are already set. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Save writes the configuration to path, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Tenant.Timeout <= 0 {
		c.Tenant.Timeout = d.Tenant.Timeout
	}
	if c.Session.MaxSlots <= 0 {
		c.Session.MaxSlots = d.Session.MaxSlots
	}
	if c.Session.HistoryLimit == 0 {
		c.Session.HistoryLimit = d.Session.HistoryLimit
	}
	if c.Submit.PollInterval <= 0 {
		c.Submit.PollInterval = d.Submit.PollInterval
	}
	if c.Submit.MaxAttempts <= 0 {
		c.Submit.MaxAttempts = d.Submit.MaxAttempts
	}
	if c.Submit.OutputWidth <= 0 || c.Submit.OutputHeight <= 0 {
		c.Submit.OutputWidth, c.Submit.OutputHeight = d.Submit.OutputWidth, d.Submit.OutputHeight
	}
	if c.Brush.Tool == "" {
		c.Brush.Tool = d.Brush.Tool
	}
	if c.Brush.Size <= 0 {
		c.Brush.Size = d.Brush.Size
	}
	if c.Brush.Color == "" {
		c.Brush.Color = d.Brush.Color
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Store.Driver == "" {
		c.Store.Driver = d.Store.Driver
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvTenantURL); v != "" {
		c.Tenant.URL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.Tenant.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("tenant.url %q is not an absolute URL", c.Tenant.URL))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("tenant.url scheme %q is not http or https", u.Scheme))
	}
	if c.Session.MaxSlots < 1 {
		errs = append(errs, fmt.Errorf("session.max_slots must be at least 1"))
	}
	if _, err := colorutil.ParseHex(c.Brush.Color); err != nil {
		errs = append(errs, fmt.Errorf("brush.color: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	switch c.Store.Driver {
	case "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("store.driver %q must be sqlite or memory", c.Store.Driver))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// TenantURL returns the tenant base URL without a trailing slash.
func (c *Config) TenantURL() string {
	return strings.TrimRight(c.Tenant.URL, "/")
}

// StorePath returns the sqlite path, defaulting to tasks.db in Dir.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tasks.db"), nil
}
