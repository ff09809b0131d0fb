package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lexredact/lexredact/internal/audit"
	"github.com/lexredact/lexredact/internal/cache"
	"github.com/lexredact/lexredact/internal/config"
	"github.com/lexredact/lexredact/internal/logger"
	"github.com/lexredact/lexredact/internal/ner"
	"github.com/lexredact/lexredact/internal/pii"
	"github.com/lexredact/lexredact/internal/server"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	// Parse command line flags
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("lexredact %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	// Perform health check and exit
	if *healthCheck {
		performHealthCheck()
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}

	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled:  cfg.Logging.File.Enabled,
			Path:     cfg.Logging.File.Path,
			MaxSize:  cfg.Logging.File.MaxSize,
			MaxAge:   cfg.Logging.File.MaxAge,
			Compress: cfg.Logging.File.Compress,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting lexredact",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
		zap.String("mode", cfg.Engine.Mode),
	)

	// Optional Redis cache for recognizer results
	var detectionCache *cache.DetectionCache
	if cfg.Cache.Enabled {
		cacheConfig := &cache.Config{
			Enabled:        cfg.Cache.Enabled,
			RedisURL:       cfg.Cache.RedisURL,
			MaxConnections: cfg.Cache.MaxConnections,
			MinIdleConns:   cfg.Cache.MinIdleConns,
			DefaultTTL:     cfg.Cache.DefaultTTL,
			KeyPrefix:      cfg.Cache.KeyPrefix,
		}
		detectionCache, err = cache.NewDetectionCache(cacheConfig, log.WithComponent("cache").Logger)
		if err != nil {
			// The engine works without the cache; inference is just slower.
			log.Warn("Detection cache unavailable, continuing without it", zap.Error(err))
			detectionCache = nil
		} else {
			defer detectionCache.Close()
		}
	}

	// Contextual entity recognizer
	recognizer, err := ner.NewRecognizer(ner.ModelConfig{
		ModelPath:   cfg.Recognizer.ModelPath,
		MaxLength:   cfg.Recognizer.MaxLength,
		BatchSize:   cfg.Recognizer.BatchSize,
		Timeout:     cfg.Recognizer.Timeout,
		UseFallback: cfg.Recognizer.UseFallback,
	}, log.WithComponent("ner").Logger, detectionCache)
	if err != nil {
		log.Fatal("Failed to create recognizer", zap.Error(err))
	}
	defer recognizer.Close()

	// Optional audit persistence
	engineOpts := []pii.EngineOption{
		pii.WithRecognizer(recognizer),
		pii.WithMode(pii.DetectionMode(cfg.Engine.Mode)),
	}
	serverOpts := []server.Option{server.WithRecognizer(recognizer)}
	if cfg.Audit.Enabled {
		auditStore, err := audit.NewStore(&audit.Config{
			DatabaseURL:  cfg.Audit.DatabaseURL,
			MaxOpenConns: cfg.Audit.MaxOpenConns,
			MaxIdleConns: cfg.Audit.MaxIdleConns,
		}, log.WithComponent("audit").Logger)
		if err != nil {
			log.Fatal("Failed to create audit store", zap.Error(err))
		}
		defer auditStore.Close()
		engineOpts = append(engineOpts, pii.WithAuditSink(auditStore))
		serverOpts = append(serverOpts, server.WithAuditStore(auditStore))
	}

	engine := pii.NewEngine(log.WithComponent("engine").Logger, engineOpts...)

	// Create server
	srv, err := server.New(cfg, log, engine, serverOpts...)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	// Reload logging level hints on config change; the engine itself keeps
	// running with the settings it was constructed with.
	if err := config.Watch(cfg, func(newCfg *config.Config) {
		log.Info("Configuration file changed",
			zap.String("log_level", newCfg.Logging.Level),
			zap.String("mode", newCfg.Engine.Mode))
	}); err != nil {
		log.Warn("Config watch unavailable", zap.Error(err))
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
