package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(LoaderOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:8750" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.Store.Driver != "json" {
		t.Errorf("store driver = %q, want json", cfg.Store.Driver)
	}
	if cfg.Poll.IntervalSeconds != 5 || cfg.Poll.MaxAttempts != 60 {
		t.Errorf("poll = %+v, want 5s x 60", cfg.Poll)
	}
	if cfg.Rotation.IntervalSeconds != 30 {
		t.Errorf("rotation interval = %d, want 30", cfg.Rotation.IntervalSeconds)
	}
}

func TestLoadFileOverlay(t *testing.T) {
	path := writeConfigFile(t, `
listen_addr = "127.0.0.1:9000"
data_dir = "/var/lib/pw"
log_level = "debug"

[store]
driver = "sqlite"

[picker]
page_size = 25

[rotation]
interval_seconds = 15
best_effort = true

[oauth]
token_endpoint = "https://oauth2.example/token"
client_id = "cid"
refresh_token = "rt"
`)
	cfg, err := Load(LoaderOptions{ConfigPath: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("store driver = %q", cfg.Store.Driver)
	}
	if cfg.Picker.PageSize != 25 {
		t.Errorf("page size = %d", cfg.Picker.PageSize)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Picker.BaseURL == "" {
		t.Error("picker base url lost its default")
	}
	if cfg.Rotation.IntervalSeconds != 15 || !cfg.Rotation.BestEffort {
		t.Errorf("rotation = %+v", cfg.Rotation)
	}
	if cfg.Rotation.ReliableFloorSeconds != 10 {
		t.Errorf("reliable floor = %d, want default 10", cfg.Rotation.ReliableFloorSeconds)
	}
	if cfg.OAuth.RefreshToken != "rt" {
		t.Errorf("oauth = %+v", cfg.OAuth)
	}
	if cfg.EffectiveCacheDir() != "/var/lib/pw/photos" {
		t.Errorf("cache dir = %q", cfg.EffectiveCacheDir())
	}
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	path := writeConfigFile(t, `listen_addr = "127.0.0.1:9000"`)
	listen := "127.0.0.1:9100"
	driver := "sqlite"
	cfg, err := Load(LoaderOptions{
		ConfigPath: path,
		FlagOverrides: FlagOverrides{
			ListenAddr:  &listen,
			StoreDriver: &driver,
		},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9100" {
		t.Errorf("listen addr = %q, want flag value", cfg.ListenAddr)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("store driver = %q", cfg.Store.Driver)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(LoaderOptions{ConfigPath: filepath.Join(t.TempDir(), "absent.toml")}); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadInvalidTOMLFails(t *testing.T) {
	path := writeConfigFile(t, `listen_addr = [unclosed`)
	if _, err := Load(LoaderOptions{ConfigPath: path}); err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestValidateFloors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"interval below floor", func(c *Config) { c.Rotation.IntervalSeconds = 3 }, "interval_seconds"},
		{"reliable floor below 10", func(c *Config) { c.Rotation.ReliableFloorSeconds = 5 }, "reliable_floor_seconds"},
		{"zero poll attempts", func(c *Config) { c.Poll.MaxAttempts = 0 }, "max_attempts"},
		{"page size out of range", func(c *Config) { c.Picker.PageSize = 101 }, "page_size"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"empty store driver", func(c *Config) { c.Store.Driver = "" }, "store.driver"},
		{"zero rate limit", func(c *Config) { c.RateLimit.RequestsPerWindow = 0 }, "requests_per_window"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}

	// Interval exactly at the floor passes.
	cfg := DefaultConfig()
	cfg.Rotation.IntervalSeconds = 5
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate at floor: %v", err)
	}
}
