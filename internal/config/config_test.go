package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvTenantURL, "")
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Session.MaxSlots != 4 || cfg.Submit.MaxAttempts != 60 || cfg.Submit.PollInterval != 5*time.Second {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Submit.OutputWidth != 800 || cfg.Submit.OutputHeight != 600 {
		t.Errorf("output size = %dx%d", cfg.Submit.OutputWidth, cfg.Submit.OutputHeight)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
tenant:
  url: https://tenant.example.com/
session:
  max_slots: 2
submit:
  poll_interval: 250ms
  max_attempts: 3
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvTenantURL, "")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.TenantURL(); got != "https://tenant.example.com" {
		t.Errorf("TenantURL() = %q", got)
	}
	if cfg.Session.MaxSlots != 2 || cfg.Session.HistoryLimit != 50 {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Submit.PollInterval != 250*time.Millisecond || cfg.Submit.MaxAttempts != 3 {
		t.Errorf("submit = %+v", cfg.Submit)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %q, env override expected", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"relative url", func(c *Config) { c.Tenant.URL = "tenant/api" }, "absolute URL"},
		{"ftp url", func(c *Config) { c.Tenant.URL = "ftp://host" }, "http or https"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad driver", func(c *Config) { c.Store.Driver = "postgres" }, "store.driver"},
		{"bad color", func(c *Config) { c.Brush.Color = "#ff00" }, "brush.color"},
		{"translucent color", func(c *Config) { c.Brush.Color = "#ff000080" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv(EnvTenantURL, "")
	t.Setenv(EnvLogLevel, "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Submit.PollInterval = 2 * time.Second
	cfg.Brush.Size = 25
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Submit.PollInterval != 2*time.Second || got.Brush.Size != 25 {
		t.Errorf("round trip lost values: %+v", got)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("GARMENT_TEST_VALUE=from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GARMENT_TEST_VALUE", "")
	os.Unsetenv("GARMENT_TEST_VALUE")

	if err := LoadEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if got := os.Getenv("GARMENT_TEST_VALUE"); got != "from-file" {
		t.Errorf("GARMENT_TEST_VALUE = %q", got)
	}
}

func TestDirHonorsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dir, err := Dir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != filepath.Join("/tmp/xdg", AppName) {
		t.Errorf("Dir() = %q", dir)
	}
}
