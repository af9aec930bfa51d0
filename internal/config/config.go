// Package config provides configuration loading and validation.
package config

import (
	"fmt"

	"github.com/athanasso/photos-widget/internal/widget"
)

// Config holds the service configuration.
type Config struct {
	// ListenAddr is the address the local API listens on.
	// Example: "127.0.0.1:8750"
	ListenAddr string `json:"listen_addr"`

	// DataDir is the directory for persisted widget state.
	DataDir string `json:"data_dir"`

	// CacheDir is the directory for downloaded photo files. Defaults
	// to <DataDir>/photos when empty.
	CacheDir string `json:"cache_dir"`

	// LogLevel is one of: debug, info, warn, error.
	LogLevel string `json:"log_level"`

	Store        StoreConfig        `json:"store"`
	Cache        CacheConfig        `json:"cache"`
	Picker       PickerConfig       `json:"picker"`
	OAuth        OAuthConfig        `json:"oauth"`
	Poll         PollConfig         `json:"poll"`
	Download     DownloadConfig     `json:"download"`
	Rotation     RotationConfig     `json:"rotation"`
	RateLimit    RateLimitConfig    `json:"ratelimit"`
	OutboundHTTP OutboundHTTPConfig `json:"outbound_http"`
}

// StoreConfig selects and configures the state store driver.
type StoreConfig struct {
	// Driver is one of the registered store drivers: json, sqlite.
	Driver string `toml:"driver" json:"driver"`

	// Options are driver-specific settings.
	Options map[string]any `toml:"options" json:"options"`
}

// CacheConfig selects and configures the cache driver.
type CacheConfig struct {
	// Driver names a registered cache driver. Currently: memory.
	Driver string `toml:"driver" json:"driver"`

	// Options are driver-specific settings.
	Options map[string]any `toml:"options" json:"options"`
}

// PickerConfig points at the remote picker backend.
type PickerConfig struct {
	// BaseURL is the picker API root, without a trailing slash.
	BaseURL string `toml:"base_url" json:"base_url"`

	// PageSize is the media-items page size (1-100).
	PageSize int `toml:"page_size" json:"page_size"`
}

// OAuthConfig holds the credential used against the picker backend.
// StaticToken short-circuits the refresh flow for local development.
type OAuthConfig struct {
	TokenEndpoint string `toml:"token_endpoint" json:"token_endpoint"`
	ClientID      string `toml:"client_id" json:"client_id"`
	ClientSecret  string `toml:"client_secret" json:"client_secret"`
	RefreshToken  string `toml:"refresh_token" json:"refresh_token"`
	StaticToken   string `toml:"static_token" json:"static_token"`
}

// PollConfig bounds the selection-readiness poll loop.
type PollConfig struct {
	IntervalSeconds int `toml:"interval_seconds" json:"interval_seconds"`
	MaxAttempts     int `toml:"max_attempts" json:"max_attempts"`
}

// DownloadConfig bounds per-item downloads.
type DownloadConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds" json:"timeout_seconds"`
	ThumbMaxPx     int `toml:"thumb_max_px" json:"thumb_max_px"`
}

// RotationConfig configures the rotation scheduler.
type RotationConfig struct {
	// IntervalSeconds is the user-facing rotation period (floor 5).
	IntervalSeconds int `toml:"interval_seconds" json:"interval_seconds"`

	// ReliableFloorSeconds is the minimum reliable ticker period
	// (floor 10).
	ReliableFloorSeconds int `toml:"reliable_floor_seconds" json:"reliable_floor_seconds"`

	// BestEffort enables the second, configured-rate ticker.
	BestEffort bool `toml:"best_effort" json:"best_effort"`
}

// RateLimitConfig bounds the trigger endpoints.
type RateLimitConfig struct {
	RequestsPerWindow int64 `toml:"requests_per_window" json:"requests_per_window"`
	WindowSeconds     int   `toml:"window_seconds" json:"window_seconds"`
}

// OutboundHTTPConfig holds settings for outbound HTTP requests.
type OutboundHTTPConfig struct {
	// TimeoutMS is the overall request timeout in milliseconds.
	TimeoutMS int `toml:"timeout_ms" json:"timeout_ms"`

	// ConnectTimeoutMS is the connection timeout in milliseconds.
	ConnectTimeoutMS int `toml:"connect_timeout_ms" json:"connect_timeout_ms"`

	// MaxResponseBytes is the maximum response body size.
	MaxResponseBytes int64 `toml:"max_response_bytes" json:"max_response_bytes"`

	// BlockPrivateAddrs refuses dials to loopback and private ranges.
	BlockPrivateAddrs bool `toml:"block_private_addrs" json:"block_private_addrs"`

	// InsecureSkipVerify disables TLS verification (dev-only).
	InsecureSkipVerify bool `toml:"insecure_skip_verify" json:"insecure_skip_verify"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: "127.0.0.1:8750",
		DataDir:    ".photos-widget",
		LogLevel:   "info",
		Store: StoreConfig{
			Driver: "json",
		},
		Cache: CacheConfig{
			Driver: "memory",
		},
		Picker: PickerConfig{
			BaseURL:  "https://photospicker.googleapis.com/v1",
			PageSize: 100,
		},
		Poll: PollConfig{
			IntervalSeconds: 5,
			MaxAttempts:     60,
		},
		Download: DownloadConfig{
			TimeoutSeconds: 30,
			ThumbMaxPx:     widget.DefaultWidth,
		},
		Rotation: RotationConfig{
			IntervalSeconds:      widget.DefaultIntervalSeconds,
			ReliableFloorSeconds: widget.ReliableFloorSeconds,
			BestEffort:           false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 60,
			WindowSeconds:     60,
		},
		OutboundHTTP: OutboundHTTPConfig{
			TimeoutMS:         30000,
			ConnectTimeoutMS:  5000,
			MaxResponseBytes:  32 << 20,
			BlockPrivateAddrs: true,
		},
	}
}

// EffectiveCacheDir resolves the photo cache directory.
func (c *Config) EffectiveCacheDir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return c.DataDir + "/photos"
}

// Validate checks bounds and enum fields. Fatal on invalid values.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q: must be one of debug, info, warn, error", c.LogLevel)
	}
	if c.Store.Driver == "" {
		return fmt.Errorf("store.driver must not be empty")
	}
	if c.Picker.PageSize < 1 || c.Picker.PageSize > 100 {
		return fmt.Errorf("picker.page_size must be between 1 and 100, got %d", c.Picker.PageSize)
	}
	if c.Poll.IntervalSeconds < 1 {
		return fmt.Errorf("poll.interval_seconds must be positive, got %d", c.Poll.IntervalSeconds)
	}
	if c.Poll.MaxAttempts < 1 {
		return fmt.Errorf("poll.max_attempts must be positive, got %d", c.Poll.MaxAttempts)
	}
	if c.Download.TimeoutSeconds < 1 {
		return fmt.Errorf("download.timeout_seconds must be positive, got %d", c.Download.TimeoutSeconds)
	}
	if c.Rotation.IntervalSeconds < widget.MinIntervalSeconds {
		return fmt.Errorf("rotation.interval_seconds must be at least %d, got %d",
			widget.MinIntervalSeconds, c.Rotation.IntervalSeconds)
	}
	if c.Rotation.ReliableFloorSeconds < widget.ReliableFloorSeconds {
		return fmt.Errorf("rotation.reliable_floor_seconds must be at least %d, got %d",
			widget.ReliableFloorSeconds, c.Rotation.ReliableFloorSeconds)
	}
	if c.RateLimit.RequestsPerWindow < 1 {
		return fmt.Errorf("ratelimit.requests_per_window must be positive, got %d", c.RateLimit.RequestsPerWindow)
	}
	if c.RateLimit.WindowSeconds < 1 {
		return fmt.Errorf("ratelimit.window_seconds must be positive, got %d", c.RateLimit.WindowSeconds)
	}
	if c.OutboundHTTP.TimeoutMS < 1 {
		return fmt.Errorf("outbound_http.timeout_ms must be positive, got %d", c.OutboundHTTP.TimeoutMS)
	}
	return nil
}
