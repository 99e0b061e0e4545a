// Package main runs the brokerage console API server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	app "github.com/agencydesk/agencydesk/internal/app"
	"github.com/agencydesk/agencydesk/internal/app/httpapi"
	"github.com/agencydesk/agencydesk/internal/app/metrics"
	"github.com/agencydesk/agencydesk/internal/app/storage/supabase"
	"github.com/agencydesk/agencydesk/internal/auth"
	"github.com/agencydesk/agencydesk/internal/config"
	"github.com/agencydesk/agencydesk/internal/database"
	"github.com/agencydesk/agencydesk/internal/middleware"
	"github.com/agencydesk/agencydesk/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	envFile := flag.String("env", ".env", "path to an optional env file")
	flag.Parse()

	// Missing env file is fine; environment may already be populated.
	_ = godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("server").WithError(err).Error("configuration failed")
		os.Exit(1)
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log := logger.New("server", os.Stdout, level)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("server exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	stores, identity, err := buildBackend(cfg, log)
	if err != nil {
		return err
	}

	application, err := app.New(stores, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return err
	}

	handler := buildHandler(cfg, application, identity, log)
	server := &http.Server{Addr: cfg.Server.Addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
	return application.Stop(shutdownCtx)
}

// buildBackend picks the persistence backend: the hosted Supabase store
// when configured, otherwise the in-memory store for local development.
func buildBackend(cfg *config.Config, log *logger.Logger) (app.Stores, *auth.Client, error) {
	if !cfg.Supabase.UseSupabase() {
		log.Warn("no supabase url configured, running on the in-memory store")
		return app.Stores{}, nil, nil
	}

	client, err := database.NewClient(database.Config{
		URL:        cfg.Supabase.URL,
		ServiceKey: cfg.Supabase.ServiceKey,
		Timeout:    cfg.Supabase.Timeout,
	})
	if err != nil {
		return app.Stores{}, nil, err
	}

	store, err := supabase.New(client, cfg.Supabase.Deployment, cfg.Supabase.UserID, log.WithField("component", "supabase-store"))
	if err != nil {
		return app.Stores{}, nil, err
	}

	identity, err := auth.NewClient(auth.Config{
		URL:       cfg.Supabase.URL,
		AnonKey:   cfg.Supabase.AnonKey,
		JWTSecret: cfg.Supabase.JWTSecret,
	}, log.WithField("component", "identity"))
	if err != nil {
		return app.Stores{}, nil, err
	}

	return app.Stores{Policies: store, Ledger: store, Watcher: store}, identity, nil
}

// buildHandler assembles the middleware chain around the REST API:
// CORS, metrics, token validation, then per-user rate limiting.
func buildHandler(cfg *config.Config, application *app.Application, identity *auth.Client, log *logger.Logger) http.Handler {
	api := httpapi.NewHandler(application, identity, log.WithField("component", "httpapi"))

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", api)

	var handler http.Handler = mux
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, log.WithField("component", "ratelimit"))
	handler = limiter.Handler(handler)
	if identity != nil {
		authn := auth.NewMiddleware(auth.Config{
			URL:       cfg.Supabase.URL,
			AnonKey:   cfg.Supabase.AnonKey,
			JWTSecret: cfg.Supabase.JWTSecret,
		})
		handler = authn.Handler(handler)
	}
	handler = metrics.InstrumentHandler(handler)
	return middleware.NewCORS(cfg.Server.Origins()).Handler(handler)
}
