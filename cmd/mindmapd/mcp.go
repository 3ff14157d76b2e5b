package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fyrsmithlabs/mindmapd/internal/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	Long: `Serve the mind-map tools to an MCP client over stdin/stdout.

Logs go to stderr since stdout carries the protocol.

Tools:
  generate_mind_map   Run the workflow for a topic
  suggested_topics    List the topic catalog
  preparation_tips    Preparation tips for a topic
  generate_mcq        Practice questions for a topic`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runMCP(ctx)
	},
}

// runMCP serves the MCP tools until the client disconnects or ctx is done.
func runMCP(ctx context.Context) error {
	a, err := newApp(ctx, configPath, true)
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

	if err := a.refs.Watch(ctx); err != nil {
		a.logger.Warn(ctx, "mcq reference file will not be reloaded on change", zap.Error(err))
	}

	srv, err := mcp.NewServer(&mcp.Config{
		Name:    "mindmapd",
		Version: version,
		Logger:  a.logger,
	}, a.generator, a.catalog, a.aids)
	if err != nil {
		return fmt.Errorf("failed to create mcp server: %w", err)
	}

	a.logger.Info(ctx, "starting mcp stdio server")
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	a.logger.Info(context.Background(), "mcp server stopped")
	return nil
}
