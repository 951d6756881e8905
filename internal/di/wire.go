// Package di provides dependency injection wiring and initialization.
package di

import (
	"context"
	"fmt"

	"github.com/aristath/restock/internal/browser"
	"github.com/aristath/restock/internal/config"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container.
// Order of operations:
// 1. Open the ledger database
// 2. Start Chrome and sign in to the supplier
// 3. Initialize services
// 4. Register jobs
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	// Step 1: Initialize databases
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	// Step 2: Browser session
	container.Browser = browser.NewManager(browser.Config{
		RemoteURL: cfg.Browser.RemoteURL,
		Headless:  cfg.Browser.Headless,
		BinPath:   cfg.Browser.BinPath,
	}, log)
	if err := container.Browser.Start(ctx); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	session, err := container.Browser.NewSession()
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to open browser session: %w", err)
	}
	if err := browser.Login(ctx, session, browser.Credentials{
		LoginURL: cfg.Supplier.LoginURL(),
		Username: cfg.Supplier.Username,
		Password: cfg.Supplier.Password,
	}, browser.LoginOptions{}, log); err != nil {
		container.Close()
		return nil, err
	}
	backorderPage := browser.NewBackorderPage(session, cfg.Supplier.BackordersURL(), browser.DefaultBackorderSelectors(), log)

	// Step 3: Initialize services
	if err := InitializeServices(container, cfg, session, backorderPage, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Step 4: Register jobs
	if err := RegisterJobs(ctx, container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")
	return container, nil
}
