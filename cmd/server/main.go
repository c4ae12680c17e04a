package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/config"
	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/metrics"
	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/model"
	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/server"
	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/stream"
	"github.com/elbruno/nvidia-voiceagent-cs-sub001/internal/transcriber"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "voiceagent-asr"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration; a missing default config file falls back to
	// built-in defaults so the service runs out of the box in mock mode.
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && *configPath == defaultConfigPath {
			cfg = config.Default()
		} else {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)),
		slog.String("model_dir", cfg.Model.Dir),
		slog.Bool("warm_load", cfg.Model.WarmLoad),
		slog.Bool("voice_enabled", cfg.Voice.Enabled),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize transcription engine
	providers := make([]model.Provider, 0, len(cfg.Model.Providers))
	for _, p := range cfg.Model.Providers {
		providers = append(providers, model.Provider(p))
	}

	engine := transcriber.NewEngine(transcriber.Config{
		ModelDir:  cfg.Model.Dir,
		SpecFile:  cfg.Model.SpecFile,
		ModelFile: cfg.Model.ModelFile,
		Providers: providers,
	}, logger, appMetrics)

	if cfg.Model.WarmLoad {
		if err := engine.EnsureLoaded(ctx); err != nil {
			logger.Error("Failed to load transcription model", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("Transcription engine ready", slog.String("state", engine.State().String()))
	} else {
		logger.Info("Transcription engine will load on first request")
	}

	// Initialize voice session manager
	streamMgr := stream.NewManager(logger, stream.ManagerConfig{
		MaxSessions:       cfg.Voice.MaxSessions,
		SessionTimeout:    cfg.Voice.GetSessionTimeout(),
		MaxBufferDuration: cfg.Audio.GetMaxBufferDuration(),
		DefaultSampleRate: cfg.Audio.SampleRate,
	}, engine, appMetrics)
	logger.Info("Session manager initialized",
		slog.Duration("session_timeout", cfg.Voice.GetSessionTimeout()),
		slog.Int("max_sessions", cfg.Voice.MaxSessions),
	)

	// Initialize and start HTTP API server
	httpServer := server.NewHTTPServer(cfg, logger, engine, streamMgr, appMetrics)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Stop session manager (cleanup sessions and stop background routines)
	streamMgr.Stop()

	// Release the inference session
	if err := engine.Close(); err != nil {
		logger.Error("Error closing transcription engine", slog.String("error", err.Error()))
	}

	// Log final statistics
	stats := engine.GetStats()
	logger.Info("Final engine statistics",
		slog.String("state", stats.State),
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("successful_requests", stats.SuccessRequests),
		slog.Uint64("mock_requests", stats.MockRequests),
		slog.Float64("success_rate", stats.SuccessRate),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
