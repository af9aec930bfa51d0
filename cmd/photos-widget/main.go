// Package main is the entrypoint for the photos-widget service.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/athanasso/photos-widget/internal/acquire"
	"github.com/athanasso/photos-widget/internal/auth"
	"github.com/athanasso/photos-widget/internal/cache"
	"github.com/athanasso/photos-widget/internal/config"
	"github.com/athanasso/photos-widget/internal/httpclient"
	"github.com/athanasso/photos-widget/internal/logutil"
	"github.com/athanasso/photos-widget/internal/picker"
	"github.com/athanasso/photos-widget/internal/ratelimit"
	"github.com/athanasso/photos-widget/internal/retry"
	"github.com/athanasso/photos-widget/internal/rotate"
	"github.com/athanasso/photos-widget/internal/server"
	"github.com/athanasso/photos-widget/internal/store"
	"github.com/athanasso/photos-widget/internal/widget"

	// Register cache and store drivers
	_ "github.com/athanasso/photos-widget/internal/cache/memory"
	_ "github.com/athanasso/photos-widget/internal/store/json"
	_ "github.com/athanasso/photos-widget/internal/store/sqlite"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	dataDir := flag.String("data-dir", "", "Data directory (overrides config)")
	cacheDir := flag.String("cache-dir", "", "Photo cache directory (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	storeDriver := flag.String("store-driver", "", "State store driver: json or sqlite (overrides config)")
	pickerURL := flag.String("picker-url", "", "Picker API base URL (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:  listenAddr,
			DataDir:     dataDir,
			CacheDir:    cacheDir,
			LogLevel:    logLevel,
			StoreDriver: storeDriver,
			PickerURL:   pickerURL,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level, err := logutil.ParseLevel(cfg.LogLevel)
	if err != nil {
		bootstrapLogger.Error("invalid log level", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	for _, dir := range []string{cfg.DataDir, cfg.EffectiveCacheDir()} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			logger.Error("failed to create directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	// State store
	stateDriver, err := store.New(&store.DriverConfig{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.DataDir,
		Options: cfg.Store.Options,
	})
	if err != nil {
		logger.Error("failed to create state store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	if err := stateDriver.Init(context.Background()); err != nil {
		logger.Error("failed to initialize state store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer stateDriver.Close()
	logger.Info("state store ready", "driver", stateDriver.Name(), "data_dir", cfg.DataDir)

	// Cache (token caching + rate limit counters)
	cacheBackend, err := cache.New(cfg.Cache.Driver, cfg.Cache.Options)
	if err != nil {
		logger.Error("failed to create cache", "driver", cfg.Cache.Driver, "error", err)
		os.Exit(1)
	}
	defer cacheBackend.Close()

	// Outbound HTTP
	httpClient := httpclient.New(&httpclient.Config{
		TimeoutMS:          cfg.OutboundHTTP.TimeoutMS,
		ConnectTimeoutMS:   cfg.OutboundHTTP.ConnectTimeoutMS,
		MaxResponseBytes:   cfg.OutboundHTTP.MaxResponseBytes,
		BlockPrivateAddrs:  cfg.OutboundHTTP.BlockPrivateAddrs,
		InsecureSkipVerify: cfg.OutboundHTTP.InsecureSkipVerify,
	})

	// Credential source: static token for local dev, refresh flow otherwise.
	var tokens auth.TokenSource
	if cfg.OAuth.StaticToken != "" {
		tokens = auth.StaticSource(cfg.OAuth.StaticToken)
		logger.Warn("using static access token; refresh flow disabled")
	} else {
		tokens = auth.NewRefreshSource(httpClient, cacheBackend, auth.RefreshConfig{
			TokenEndpoint: cfg.OAuth.TokenEndpoint,
			ClientID:      cfg.OAuth.ClientID,
			ClientSecret:  cfg.OAuth.ClientSecret,
			RefreshToken:  cfg.OAuth.RefreshToken,
		}, logger)
	}

	manager := widget.NewManager(stateDriver.(widget.StateStore), logger)

	sessions := picker.NewClient(httpClient, tokens, picker.Config{
		BaseURL:  cfg.Picker.BaseURL,
		PageSize: cfg.Picker.PageSize,
	}, logger)

	downloader := acquire.NewAssetDownloader(httpClient, tokens, acquire.DownloaderConfig{
		CacheDir:   cfg.EffectiveCacheDir(),
		Timeout:    time.Duration(cfg.Download.TimeoutSeconds) * time.Second,
		ThumbMaxPx: uint(cfg.Download.ThumbMaxPx),
	}, logger)

	pollPolicy := retry.NewPolicy(cfg.Poll.MaxAttempts, time.Duration(cfg.Poll.IntervalSeconds)*time.Second)
	workflow := acquire.NewWorkflow(sessions, downloader, manager, pollPolicy, logger)
	importer := acquire.NewLocalImporter(manager, logger)

	// The render collaborator is the host display surface. The default
	// binding just logs; embedders swap in their own Renderer.
	renderer := rotate.RenderFunc(func(ctx context.Context) error {
		logger.Debug("render requested")
		return nil
	})

	trigger := rotate.NewTrigger(manager, renderer, logger)
	scheduler := rotate.NewScheduler(trigger, rotate.SchedulerConfig{
		Interval:      rotationInterval(cfg, manager, logger),
		ReliableFloor: time.Duration(cfg.Rotation.ReliableFloorSeconds) * time.Second,
		BestEffort:    cfg.Rotation.BestEffort,
	}, logger)
	dispatcher := rotate.NewDispatcher(trigger, renderer, scheduler, logger)

	limiter := ratelimit.New(cacheBackend, &ratelimit.Config{
		RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
		Window:            time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		KeyPrefix:         "ratelimit:",
	})

	srv, err := server.New(cfg, logger, &server.Deps{
		Manager:    manager,
		Workflow:   workflow,
		Importer:   importer,
		Trigger:    trigger,
		Scheduler:  scheduler,
		Dispatcher: dispatcher,
		Limiter:    limiter,
	})
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("service started, press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info("shutdown signal received")

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("service stopped")
}

// rotationInterval prefers the interval persisted in the widget state
// over the configured default, so restarts keep the user's setting.
func rotationInterval(cfg *config.Config, manager *widget.Manager, logger *slog.Logger) time.Duration {
	interval := time.Duration(cfg.Rotation.IntervalSeconds) * time.Second
	state, err := manager.Read(context.Background())
	if err != nil {
		logger.Warn("could not read persisted state for rotation interval", "error", err)
		return interval
	}
	if state != nil && state.RotationIntervalSeconds >= widget.MinIntervalSeconds {
		return time.Duration(state.RotationIntervalSeconds) * time.Second
	}
	return interval
}
