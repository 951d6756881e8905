// Package main is the entry point for the restock order engine.
// It watches supplier stock pages during working hours and places
// progressively sized orders when products come back in stock.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/restock/internal/config"
	"github.com/aristath/restock/internal/di"
	"github.com/aristath/restock/internal/domain"
	"github.com/aristath/restock/internal/server"
	"github.com/aristath/restock/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// main orchestrates startup:
// 1. Loads configuration from environment variables and the products file
// 2. Initializes logging
// 3. Wires all dependencies (ledger, browser session, engine, jobs)
// 4. Runs the monitor loop, the HTTP server and the scheduler
// 5. Waits for a shutdown signal or a fatal engine error
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	log.Info().
		Bool("auto_order", cfg.AutoOrder).
		Str("timezone", cfg.Timezone).
		Int("products", len(cfg.Products)).
		Msg("Starting restock engine")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		AutoOrder: cfg.AutoOrder,
		Products:  cfg.Products,
		Loop:      container.Loop,
		State:     container.StateStore,
		Cooldowns: container.Cooldowns,
		LedgerDB:  container.LedgerDB,
		Ledger:    container.LedgerHandler,
		EventBus:  container.EventBus,
	})

	container.Scheduler.Start()

	g, gctx := errgroup.WithContext(ctx)

	// The monitor loop returns nil on shutdown and an error only when the
	// engine cannot continue (lost session, unwritable state).
	g.Go(func() error {
		return container.Loop.Run(gctx)
	})

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	log.Info().Int("port", cfg.Port).Msg("Restock engine running")

	runErr := g.Wait()

	if err := container.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close resources")
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		if domain.IsFatal(runErr) {
			log.Error().Err(runErr).Msg("Engine stopped on fatal error")
		} else {
			log.Error().Err(runErr).Msg("Engine stopped")
		}
		os.Exit(1)
	}

	log.Info().Msg("Restock engine stopped")
}
