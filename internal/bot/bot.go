// Package bot orchestrates holidaybot's long-running components: the Telegram
// poller, the scheduler and the HTTP API.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Poller receives Telegram updates until ctx is cancelled.
type Poller interface {
	Start(ctx context.Context)
}

// TaskScheduler is started once and stopped on shutdown.
type TaskScheduler interface {
	Start(ctx context.Context) error
	Stop() error
}

// HTTPServer is satisfied by *http.Server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// Drainer stops background work and waits for it.
type Drainer interface {
	Close()
}

// Bot represents the main application and manages its components' lifecycle.
type Bot struct {
	logger          *slog.Logger
	poller          Poller
	scheduler       TaskScheduler
	server          HTTPServer
	pipeline        Drainer
	shutdownTimeout time.Duration
}

// NewBot creates the orchestrator. pipeline may be nil.
func NewBot(
	logger *slog.Logger,
	poller Poller,
	scheduler TaskScheduler,
	server HTTPServer,
	pipeline Drainer,
	shutdownTimeout time.Duration,
) *Bot {
	return &Bot{
		logger:          logger.With("component", "bot_orchestrator"),
		poller:          poller,
		scheduler:       scheduler,
		server:          server,
		pipeline:        pipeline,
		shutdownTimeout: shutdownTimeout,
	}
}

// Run starts all components and blocks until ctx is cancelled or one of them
// fails. Everything is shut down before Run returns.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")

		b.poller.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(gCtx); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting HTTP server...")
		if err := b.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Error("HTTP server failed", "error", err)
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.shutdownTimeout)
		defer cancel()
		if err := b.server.Shutdown(shutdownCtx); err != nil {
			b.logger.Error("Error shutting down HTTP server", "error", err)
		}
		return nil
	})

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if b.pipeline != nil {
		b.logger.Info("Draining image query pipeline...")
		b.pipeline.Close()
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
