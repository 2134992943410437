// Package app wires configuration, services, transport and the HTTP
// server into a runnable dashboard application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grainbids/internal/config"
	"grainbids/internal/fetch"
	"grainbids/internal/infrastructure"
	"grainbids/internal/middleware"
	"grainbids/internal/services"
	transporthttp "grainbids/internal/transport/http"
	"grainbids/internal/websocket"
)

// Version is stamped at build time.
var Version = "dev"

// App is the assembled dashboard application.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	server *http.Server
	hub    *websocket.Hub
}

// New loads the sources file, wires the pipeline service and builds the
// HTTP server.
func New(cfg *config.Config) (*App, error) {
	logger := infrastructure.InitializeLogger(cfg.Logging)

	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := infrastructure.NewMetrics(registry)
	hub := websocket.NewHub(logger)

	client := fetch.NewClient(cfg.Fetch)
	var browser services.RenderedFetcher
	if cfg.Fetch.EnableBrowser {
		browser = fetch.NewBrowserFetcher(cfg.Fetch.BrowserTimeout)
	}

	bidService, err := services.NewBidService(
		cfg.Pipeline, sources, client, browser, hub, metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build bid service: %w", err)
	}

	router := buildRouter(logger, bidService, hub, metrics, registry)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{cfg: cfg, logger: logger, server: server, hub: hub}, nil
}

func buildRouter(logger *slog.Logger, bidService *services.BidService, hub *websocket.Hub, metrics *infrastructure.Metrics, registry *prometheus.Registry) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Route("/api", func(r chi.Router) {
		r.Mount("/bids", transporthttp.NewBidsHandler(bidService, metrics, logger).Routes())
		r.Mount("/health", transporthttp.NewHealthHandler(Version).Routes())
	})
	r.Get("/ws", hub.ServeWS)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return r
}

// Run starts the hub and the HTTP server, blocking until the context is
// canceled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	go a.hub.Run()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.hub.Shutdown()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
