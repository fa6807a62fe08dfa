// sql-gateway is the HTTP gateway that forwards compiled SQL statements
// to a long-running Flink job.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sqlgateway/internal/api"
	"sqlgateway/internal/config"
	"sqlgateway/internal/flink"
	"sqlgateway/internal/gateway"
	"sqlgateway/internal/health"
	"sqlgateway/internal/idempotency"
	"sqlgateway/internal/notify"
	"sqlgateway/internal/observability"
	"sqlgateway/pkg/circuitbreaker"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	// Flink REST client and target resolver
	client := flink.NewClient(cfg)
	resolver := flink.NewResolver(client, cfg, metrics)

	// Idempotency cache with single-flight claims
	cache := idempotency.New[*flink.JobMetadata](config.IdempotencyTTL, cfg.IdempotencyWait)

	// Breaker guarding the statement endpoint
	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig())

	// Optional webhook notifier for submission events
	var eventNotifier *notify.MemoryNotifier
	var submissionNotifier *notify.SubmissionNotifier
	if cfg.CallbackURL != "" {
		eventNotifier = notify.NewMemory(notify.LoadConfigFromEnv(), metrics)
		submissionNotifier = notify.NewSubmissionNotifier(eventNotifier, cfg.CallbackURL, cfg.CallbackSigningKey)
		slog.Info("Submission callbacks enabled", "url", cfg.CallbackURL)
	}

	svc := gateway.NewService(resolver, client, cache, breaker, metrics, submissionNotifier)

	// Health checker pings the Flink REST endpoint; with an explicit job id
	// configured it also verifies the job is still known and running.
	healthChecker := health.NewChecker(client)
	if cfg.ApplicationJobID != "" {
		healthChecker.TrackJob(client, cfg.ApplicationJobID)
	}

	// Optional per-client rate limit
	var rateLimit *api.RateLimitConfig
	if cfg.RateLimitRPS > 0 {
		rateLimit = &api.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		}
	}

	router := api.NewRouter(api.RouterConfig{
		Service:       svc,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		AuthToken:     cfg.AuthToken,
		RateLimit:     rateLimit,
	})

	if cfg.AuthToken != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no AUTH_TOKEN configured")
	}

	// Create API server
	apiServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Create metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + cfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Channel to capture server errors
	serverErr := make(chan error, 1)

	// Start API server
	go func() {
		slog.Info("Starting API server", "port", cfg.Port, "flink", cfg.FlinkRESTURL)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Start metrics server
	go func() {
		slog.Info("Starting metrics server", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// shutdown closes both servers gracefully
	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		shutdown(5 * time.Second)
		return err
	}

	// Phase 1: Mark service as unhealthy for load balancer draining
	healthChecker.SetShuttingDown()

	// Wait for load balancers to stop sending traffic
	if cfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", cfg.ShutdownDrainWait)
		time.Sleep(cfg.ShutdownDrainWait)
	}

	// Phase 2: Graceful shutdown - stop accepting new connections, finish in-flight requests
	slog.Info("Starting graceful shutdown")
	shutdown(25 * time.Second)

	// Phase 3: Drain the event notifier
	if eventNotifier != nil {
		slog.Info("Draining event notifier")
		notifierCtx, notifierCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer notifierCancel()
		if err := eventNotifier.Close(notifierCtx); err != nil {
			slog.Warn("Notifier shutdown error", "error", err)
		}

		stats := eventNotifier.Stats()
		slog.Info("Notifier stats",
			"delivered", stats.Delivered,
			"failed", stats.Failed,
			"dropped", stats.Dropped,
		)
	}

	slog.Info("Shutdown complete")
	return nil
}
