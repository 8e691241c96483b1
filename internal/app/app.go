// Package app assembles the service: config in, wired App out.
package app

import (
	"context"
	"errors"
	"fmt"

	brcfg "bracket/internal/config"
	"bracket/internal/dispatch"
	"bracket/internal/logger"
	"bracket/internal/oco"
	"bracket/internal/store"
	apihttp "bracket/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *brcfg.Config
	store      store.GroupStore
	manager    *oco.Manager
	dispatcher *dispatch.Dispatcher
	httpServer *apihttp.Server
}

// NewApp builds the application from config without starting anything.
func NewApp(cfg *brcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildApp(cfg)
}

// Run reconciles persisted state against the broker, then serves until
// ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}

	if err := a.manager.Reconcile(ctx); err != nil {
		// Startup proceeds; the update stream and later restarts converge
		// whatever reconciliation could not reach.
		logger.Warnf("startup reconcile incomplete: %v", err)
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.httpServer.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		defer a.manager.Close()
		return a.dispatcher.Run(ctx)
	})

	group.Go(func() error {
		// Backstop for order pushes that never arrive.
		a.manager.ReconcileLoop(ctx)
		return nil
	})

	err := group.Wait()
	if closeErr := a.store.Close(); closeErr != nil {
		logger.Warnf("store close failed: %v", closeErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Manager exposes the orchestrator instance (for testing harnesses).
func (a *App) Manager() *oco.Manager {
	if a == nil {
		return nil
	}
	return a.manager
}
