package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Goodman667/NeuraSense/internal/api"
	"github.com/Goodman667/NeuraSense/internal/catalog"
	"github.com/Goodman667/NeuraSense/internal/config"
	"github.com/Goodman667/NeuraSense/internal/engine"
	"github.com/Goodman667/NeuraSense/internal/features"
	"github.com/Goodman667/NeuraSense/internal/logging"
	"github.com/Goodman667/NeuraSense/internal/outcome"
	"github.com/Goodman667/NeuraSense/internal/rules"
	"github.com/Goodman667/NeuraSense/internal/tailoring"
)

// #region main
func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Init(logging.Options{})
		logging.Fatal().Err(err).Msg("[MAIN] configuration invalid")
	}
	logging.Init(logging.Options{Pretty: cfg.LogPretty, Level: cfg.LogLevel})

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		logging.Fatal().Err(err).Msg("[MAIN] cannot create data directory")
	}
	store, err := features.NewStore(cfg.DBPath)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.DBPath).Msg("[MAIN] cannot open feature store")
	}
	defer store.Close()

	tracker, err := outcome.NewTracker(store.DB())
	if err != nil {
		logging.Fatal().Err(err).Msg("[MAIN] cannot initialize outcome tracker")
	}

	ruleRepo := rules.NewRepository(cfg.RulesPath)
	catalogRepo := catalog.NewRepository(cfg.CatalogPath)

	// When the cache is enabled, both reads and check-in writes go through
	// it so the cached head never goes stale behind an ingest.
	var observations features.ObservationSource = store
	var ingest engine.ObservationRecorder = store
	if cfg.Redis.URL != "" {
		client, err := cfg.Redis.New(context.Background())
		if err != nil {
			logging.Warn().Err(err).Msg("[MAIN] redis unavailable, running without check-in cache")
		} else {
			defer client.Close()
			cached := features.NewCachedObservations(store, client, cfg.CacheTTL)
			observations = cached
			ingest = cached
			logging.Info().Msg("[MAIN] check-in cache enabled")
		}
	}

	builder := tailoring.NewBuilder(observations, store, nil)
	eng := engine.New(builder, ruleRepo, catalogRepo, tracker).WithIngest(ingest)
	server := api.NewServer(eng, tracker, cfg.MaxTools)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", cfg.Addr).Msg("[MAIN] decision engine listening")
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("[MAIN] server failed")
		}
	case sig := <-stop:
		logging.Info().Str("signal", sig.String()).Msg("[MAIN] shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("[MAIN] shutdown not clean")
		}
	}
}

// #endregion main
