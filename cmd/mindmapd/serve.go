package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os/signal"
	"syscall"

	"github.com/fyrsmithlabs/mindmapd/internal/auth"
	mmhttp "github.com/fyrsmithlabs/mindmapd/internal/http"
	"github.com/fyrsmithlabs/mindmapd/internal/news"
	"github.com/fyrsmithlabs/mindmapd/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the mindmapd HTTP API.

Examples:
  # Start with defaults (0.0.0.0:8001, file storage in the working directory)
  mindmapd serve

  # Use redis for saved generations
  MINDMAPD_STORAGE_BACKEND=redis MINDMAPD_STORAGE_REDIS_ADDR=localhost:6379 mindmapd serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

// runServe starts the HTTP API and blocks until ctx is cancelled, then
// shuts down gracefully.
func runServe(ctx context.Context) error {
	a, err := newApp(ctx, configPath, false)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.close(shutdownCtx); err != nil {
			a.logger.Warn(shutdownCtx, "shutdown incomplete", zap.Error(err))
		}
	}()
	cfg := a.cfg
	logger := a.logger

	generations, err := newGenerationStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open generation store: %w", err)
	}
	defer generations.Close()

	articles, err := store.NewFileArticleStore(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open article store: %w", err)
	}

	deps := mmhttp.Deps{
		Generator:   a.generator,
		Generations: generations,
		Articles:    articles,
		Catalog:     a.catalog,
		StudyAids:   a.aids,
		News:        news.New(news.FromSettings(cfg.News, cfg.Storage.DataDir), logger.Named("news")),
		Auth:        auth.New(auth.FromSettings(cfg.Auth)),
	}
	if !cfg.News.APIKey.IsSet() {
		logger.Warn(ctx, "no news API key configured; /news will fail")
	}
	if cfg.Auth.GoogleClientID != "" && len(cfg.Auth.AllowedEmails) == 0 {
		logger.Warn(ctx, "google sign-in configured with an empty allow-list; every sign-in will be denied")
	}

	if err := a.refs.Watch(ctx); err != nil {
		logger.Warn(ctx, "mcq reference file will not be reloaded on change", zap.Error(err))
	}

	srv, err := mmhttp.NewServer(deps, logger.Named("http"), &mmhttp.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	logger.Info(ctx, "server configured",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("data_dir", cfg.Storage.DataDir),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info(shutdownCtx, "server shutdown complete")
	return nil
}
