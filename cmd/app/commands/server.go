package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/dominion/internal/app"
)

const shutdownTimeout = 15 * time.Second

// RunServer bootstraps the root key ring and runs the API server, the metrics server,
// the audit dispatcher and the rotation scheduler until SIGINT/SIGTERM or the first
// fatal error. The dispatcher is stopped last so events recorded by in-flight requests
// are still persisted.
func RunServer(ctx context.Context, container *app.Container, version string) error {
	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))
	defer closeContainer(container, logger)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	keys, err := container.RootKeyUseCase(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize root keys: %w", err)
	}
	if err := keys.Bootstrap(ctx); err != nil {
		return fmt.Errorf("failed to bootstrap root keys: %w", err)
	}

	server, err := container.HTTPServer(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}
	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}
	dispatcher, err := container.AuditDispatcher()
	if err != nil {
		return fmt.Errorf("failed to initialize audit dispatcher: %w", err)
	}
	manager, err := container.RotationManager(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize rotation manager: %w", err)
	}

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(gctx); err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	})
	if metricsServer != nil {
		g.Go(func() error {
			if err := metricsServer.Start(gctx); err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return manager.Run(gctx)
	})
	g.Go(func() error {
		return dispatcher.Start(dispatchCtx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		var shutdownErrors []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
			}
		}
		stopDispatch()
		return errors.Join(shutdownErrors...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
