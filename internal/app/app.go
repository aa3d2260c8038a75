package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"foundry-relay/internal/config"
	"foundry-relay/internal/proxy"
)

// App orchestrates the lifecycle of the relay server and related services.
type App struct {
	cfg    *config.Config
	health *Health
	proxy  *proxy.Proxy
}

// New assembles the relay from its configuration.
func New(cfg *config.Config) (*App, error) {
	health := NewHealth()

	proxyServer, err := proxy.New(cfg, health)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy: %w", err)
	}

	return &App{
		cfg:    cfg,
		health: health,
		proxy:  proxyServer,
	}, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting proxy server")
	proxyErrCh, err := a.proxy.Start(gCtx, a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("proxy startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.proxy.Shutdown)
	a.health.SetReady(true)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-proxyErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "proxy runtime error", "error", err)
				return fmt.Errorf("proxy: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	runtimeErr := g.Wait()
	a.health.SetReady(false)

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	a.logUsageSummary()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

// logUsageSummary emits the aggregated per-route usage so a terminating relay
// leaves a record even without an external metrics sink.
func (a *App) logUsageSummary() {
	snapshot, ok := a.proxy.UsageSnapshot()
	if !ok {
		return
	}

	for route, rs := range snapshot.Routes {
		slog.Info("usage summary",
			"route", route,
			"requests", rs.Count,
			"errors", rs.ErrorCount,
			"prompt_tokens", rs.Usage.PromptTokens,
			"completion_tokens", rs.Usage.CompletionTokens,
			"total_tokens", rs.Usage.TotalTokens,
		)
	}
}
