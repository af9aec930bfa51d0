package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but the file is missing or invalid, loading fails.
	ConfigPath string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
type FlagOverrides struct {
	ListenAddr  *string
	DataDir     *string
	CacheDir    *string
	LogLevel    *string
	StoreDriver *string
	PickerURL   *string
}

// fileConfig mirrors Config but with pointer sections to detect presence.
type fileConfig struct {
	ListenAddr string `toml:"listen_addr"`
	DataDir    string `toml:"data_dir"`
	CacheDir   string `toml:"cache_dir"`
	LogLevel   string `toml:"log_level"`

	Store        *StoreConfig        `toml:"store"`
	Cache        *CacheConfig        `toml:"cache"`
	Picker       *pickerConfig       `toml:"picker"`
	OAuth        *OAuthConfig        `toml:"oauth"`
	Poll         *pollConfig         `toml:"poll"`
	Download     *downloadConfig     `toml:"download"`
	Rotation     *rotationConfig     `toml:"rotation"`
	RateLimit    *rateLimitConfig    `toml:"ratelimit"`
	OutboundHTTP *outboundHTTPConfig `toml:"outbound_http"`
}

// Per-section pointer shapes so absent keys keep their defaults.
type pickerConfig struct {
	BaseURL  *string `toml:"base_url"`
	PageSize *int    `toml:"page_size"`
}

type pollConfig struct {
	IntervalSeconds *int `toml:"interval_seconds"`
	MaxAttempts     *int `toml:"max_attempts"`
}

type downloadConfig struct {
	TimeoutSeconds *int `toml:"timeout_seconds"`
	ThumbMaxPx     *int `toml:"thumb_max_px"`
}

type rotationConfig struct {
	IntervalSeconds      *int  `toml:"interval_seconds"`
	ReliableFloorSeconds *int  `toml:"reliable_floor_seconds"`
	BestEffort           *bool `toml:"best_effort"`
}

type rateLimitConfig struct {
	RequestsPerWindow *int64 `toml:"requests_per_window"`
	WindowSeconds     *int   `toml:"window_seconds"`
}

type outboundHTTPConfig struct {
	TimeoutMS          *int   `toml:"timeout_ms"`
	ConnectTimeoutMS   *int   `toml:"connect_timeout_ms"`
	MaxResponseBytes   *int64 `toml:"max_response_bytes"`
	BlockPrivateAddrs  *bool  `toml:"block_private_addrs"`
	InsecureSkipVerify *bool  `toml:"insecure_skip_verify"`
}

// Load loads configuration with the following precedence:
//  1. Start from defaults.
//  2. Overlay TOML config file values.
//  3. Overlay CLI flags.
//  4. Validate.
//
// If ConfigPath is provided but the file is missing, unreadable, or
// invalid TOML, Load returns an error. Unknown TOML keys produce a
// warning but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := DefaultConfig()

	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		var fc fileConfig
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
		overlayFileConfig(cfg, &fc)
	}

	overlayFlags(cfg, opts.FlagOverrides)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.CacheDir != "" {
		cfg.CacheDir = fc.CacheDir
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if fc.Store.Options != nil {
			cfg.Store.Options = fc.Store.Options
		}
	}
	if fc.Cache != nil {
		if fc.Cache.Driver != "" {
			cfg.Cache.Driver = fc.Cache.Driver
		}
		if fc.Cache.Options != nil {
			cfg.Cache.Options = fc.Cache.Options
		}
	}
	if fc.Picker != nil {
		setIf(&cfg.Picker.BaseURL, fc.Picker.BaseURL)
		setIf(&cfg.Picker.PageSize, fc.Picker.PageSize)
	}
	if fc.OAuth != nil {
		cfg.OAuth = *fc.OAuth
	}
	if fc.Poll != nil {
		setIf(&cfg.Poll.IntervalSeconds, fc.Poll.IntervalSeconds)
		setIf(&cfg.Poll.MaxAttempts, fc.Poll.MaxAttempts)
	}
	if fc.Download != nil {
		setIf(&cfg.Download.TimeoutSeconds, fc.Download.TimeoutSeconds)
		setIf(&cfg.Download.ThumbMaxPx, fc.Download.ThumbMaxPx)
	}
	if fc.Rotation != nil {
		setIf(&cfg.Rotation.IntervalSeconds, fc.Rotation.IntervalSeconds)
		setIf(&cfg.Rotation.ReliableFloorSeconds, fc.Rotation.ReliableFloorSeconds)
		setIf(&cfg.Rotation.BestEffort, fc.Rotation.BestEffort)
	}
	if fc.RateLimit != nil {
		setIf(&cfg.RateLimit.RequestsPerWindow, fc.RateLimit.RequestsPerWindow)
		setIf(&cfg.RateLimit.WindowSeconds, fc.RateLimit.WindowSeconds)
	}
	if fc.OutboundHTTP != nil {
		setIf(&cfg.OutboundHTTP.TimeoutMS, fc.OutboundHTTP.TimeoutMS)
		setIf(&cfg.OutboundHTTP.ConnectTimeoutMS, fc.OutboundHTTP.ConnectTimeoutMS)
		setIf(&cfg.OutboundHTTP.MaxResponseBytes, fc.OutboundHTTP.MaxResponseBytes)
		setIf(&cfg.OutboundHTTP.BlockPrivateAddrs, fc.OutboundHTTP.BlockPrivateAddrs)
		setIf(&cfg.OutboundHTTP.InsecureSkipVerify, fc.OutboundHTTP.InsecureSkipVerify)
	}
}

func overlayFlags(cfg *Config, f FlagOverrides) {
	if f.ListenAddr != nil && *f.ListenAddr != "" {
		cfg.ListenAddr = *f.ListenAddr
	}
	if f.DataDir != nil && *f.DataDir != "" {
		cfg.DataDir = *f.DataDir
	}
	if f.CacheDir != nil && *f.CacheDir != "" {
		cfg.CacheDir = *f.CacheDir
	}
	if f.LogLevel != nil && *f.LogLevel != "" {
		cfg.LogLevel = *f.LogLevel
	}
	if f.StoreDriver != nil && *f.StoreDriver != "" {
		cfg.Store.Driver = *f.StoreDriver
	}
	if f.PickerURL != nil && *f.PickerURL != "" {
		cfg.Picker.BaseURL = *f.PickerURL
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
