package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/docbook-web/internal/api/router"
	"github.com/wolfman30/docbook-web/internal/apiclient"
	"github.com/wolfman30/docbook-web/internal/app/bootstrap"
	"github.com/wolfman30/docbook-web/internal/catalog"
	appconfig "github.com/wolfman30/docbook-web/internal/config"
	"github.com/wolfman30/docbook-web/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/docbook-web/internal/http/middleware"
	"github.com/wolfman30/docbook-web/internal/lookup"
	"github.com/wolfman30/docbook-web/internal/observability/metrics"
	"github.com/wolfman30/docbook-web/internal/session"
	"github.com/wolfman30/docbook-web/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting docbook web server",
		"env", cfg.Env,
		"port", cfg.Port,
		"api_base_url", cfg.APIBaseURL,
	)

	app, err := buildApp(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", app.server.Addr)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		app.Close()
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// app is the wired web tier plus what must be released on exit.
type app struct {
	server  *http.Server
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func setupMetrics() (http.Handler, *metrics.FrontendMetrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewFrontendMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m, reg
}

// logSessionEnds reports logouts and backend-rejected tokens.
func logSessionEnds(logger *logging.Logger, m *metrics.FrontendMetrics) session.Listener {
	return func(_ context.Context, ev session.Ended) {
		m.ObserveSessionEnded(ev.Reason)
		logger.Info("admin session ended", "session_id", ev.SessionID, "reason", ev.Reason)
	}
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*app, error) {
	a := &app{}
	metricsHandler, m, _ := setupMetrics()

	client := apiclient.NewClient(cfg.APIBaseURL, logger.Component("apiclient"), apiclient.WithMetrics(m))
	directory := catalog.New(client, cfg.CatalogCacheSize, cfg.CatalogCacheTTL, logger.Component("catalog"))

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
	}
	manager := session.NewManager(bootstrap.BuildSessionStore(redisClient, cfg, logger), logger.Component("session"))
	manager.OnEnded(logSessionEnds(logger, m))

	renderer, err := handlers.NewRenderer(logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build renderer: %w", err)
	}

	var limiter *httpmiddleware.RateLimiter
	if cfg.PublicRateLimitRPS > 0 {
		limiter = httpmiddleware.NewRateLimiter(cfg.PublicRateLimitRPS, cfg.PublicRateLimitBurst)
		a.closers = append(a.closers, limiter.Stop)
	}

	lookups := lookup.NewService(client, lookup.WithLogger(logger.Component("lookup")))
	r := router.New(&router.Config{
		Logger:      logger,
		Public:      handlers.NewPublicHandler(directory, client, lookups, renderer, logger.Component("public"), m),
		Admin:       handlers.NewAdminHandler(client, directory, renderer, logger.Component("admin"), m),
		Sessions:    manager,
		Cookie:      httpmiddleware.CookieConfig{Name: cfg.SessionCookieName, TTL: cfg.SessionTTL, Secure: cfg.CookieSecure || cfg.IsProduction()},
		RateLimiter: limiter,

		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	a.server = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return a, nil
}
