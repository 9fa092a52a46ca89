package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"forecasting-engine/analytics/ml"
	"forecasting-engine/api"
	"forecasting-engine/config"
	"forecasting-engine/forecasting"
	"forecasting-engine/insights"
	"forecasting-engine/metrics"
	"forecasting-engine/storage"
)

func main() {
	configFile := flag.String("config", "", "Path to a config file (defaults to ./config.yaml or ./configs/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	logger := cfg.Log.NewLogger()
	logger.Info("Starting Forecasting Engine...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder := metrics.NewRecorder()

	var warm *storage.RedisStore
	if cfg.Redis.Enabled {
		client, err := storage.NewRedisClient(ctx, storage.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			Timeout:   cfg.Redis.Timeout,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		warm = storage.NewRedisStore(client, cfg.Redis.KeyPrefix, cfg.Forecasting.CacheTTL, cfg.Redis.Timeout, logger)
		logger.WithField("addr", cfg.Redis.Addr).Info("Redis result tier enabled")
	}

	store := storage.NewResultStore(storage.Config{
		MaxEntries:      cfg.Forecasting.CacheMaxEntries,
		TTL:             cfg.Forecasting.CacheTTL,
		CleanupInterval: cfg.Forecasting.CleanupInterval,
	}, warm, logger)

	generator, err := newInsightGenerator(ctx, cfg.Insights, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize insight provider")
	}

	algorithms, err := cfg.Algorithms()
	if err != nil {
		logger.WithError(err).Fatal("Invalid default algorithms")
	}

	engine := forecasting.NewEngine(forecasting.Options{
		CacheTTL:          cfg.Forecasting.CacheTTL,
		CacheMaxEntries:   cfg.Forecasting.CacheMaxEntries,
		CleanupInterval:   cfg.Forecasting.CleanupInterval,
		MaxWorkers:        cfg.Forecasting.MaxWorkers,
		StaleAfter:        cfg.Forecasting.StaleAfter,
		SupportedMetrics:  cfg.Forecasting.SupportedMetrics,
		DefaultAlgorithms: algorithms,
	}, forecasting.Dependencies{
		Registry: ml.NewRegistry(),
		Store:    store,
		Insights: generator,
		Metrics:  recorder,
		Logger:   logger,
	})
	engine.Start()
	defer func() {
		if err := engine.Stop(); err != nil {
			logger.WithError(err).Error("Error stopping forecasting engine")
		}
	}()

	var auth *api.AuthMiddleware
	if cfg.Auth.Enabled {
		auth = api.NewAuthMiddleware(cfg.Auth.JWTSecret)
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      api.NewServer(engine, recorder, auth, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.WithField("addr", cfg.Server.Port).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	printStartupInfo(cfg, generator)

	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Server forced to shutdown")
	}

	logger.Info("Server gracefully stopped")
}

// newInsightGenerator returns nil when insights are disabled
func newInsightGenerator(ctx context.Context, cfg config.InsightsConfig, logger *logrus.Logger) (*insights.Generator, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var provider insights.Provider
	var err error
	switch cfg.Provider {
	case "gemini":
		provider, err = insights.NewGeminiProvider(ctx, cfg.APIKey, cfg.Model)
	case "claude":
		provider, err = insights.NewClaudeProvider(cfg.APIKey, cfg.Model, cfg.MaxTokens)
	default:
		err = fmt.Errorf("unknown insights provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"provider": provider.Name(),
		"timeout":  cfg.Timeout,
	}).Info("Insight generation enabled")

	return insights.NewGenerator(provider, insights.Config{
		Timeout:           cfg.Timeout,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	}, logger), nil
}

func printStartupInfo(cfg *config.Config, generator *insights.Generator) {
	port := cfg.Server.Port
	enabled := func(on bool) string {
		if on {
			return "enabled"
		}
		return "disabled"
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("🚀 Forecasting Engine Started")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("📊 HTTP API: http://localhost%s\n", port)

	fmt.Println("\n🔧 Configuration:")
	fmt.Printf("  Result cache: ttl=%v, max entries=%d\n", cfg.Forecasting.CacheTTL, cfg.Forecasting.CacheMaxEntries)
	fmt.Printf("  Redis tier:   %s (%s)\n", enabled(cfg.Redis.Enabled), cfg.Redis.Addr)
	fmt.Printf("  Workers:      %d\n", cfg.Forecasting.MaxWorkers)
	if generator != nil {
		fmt.Printf("  Insights:     %s (timeout %v)\n", generator.Provider(), cfg.Insights.Timeout)
	} else {
		fmt.Println("  Insights:     disabled")
	}
	fmt.Printf("  Auth:         %s\n", enabled(cfg.Auth.Enabled))

	fmt.Println("\n📋 Available Endpoints:")
	fmt.Printf("  POST %s/api/v1/forecasts               - Generate a forecast\n", port)
	fmt.Printf("  POST %s/api/v1/forecasts/validate      - Validate a request\n", port)
	fmt.Printf("  GET  %s/api/v1/forecasts/capabilities  - Engine capabilities\n", port)
	fmt.Printf("  GET  %s/api/v1/cache/stats             - Cache statistics\n", port)
	fmt.Printf("  GET  %s/health                         - Health check\n", port)
	fmt.Printf("  GET  %s/metrics                        - Prometheus metrics\n", port)

	fmt.Println("\n📊 Example Usage:")
	fmt.Printf("  go run ./cmd/cli -server http://localhost%s demo\n", port)

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("✅ Ready to accept requests!")
	fmt.Println("💡 Press Ctrl+C to gracefully shutdown")
	fmt.Println(strings.Repeat("=", 60) + "\n")
}
