package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pdfrag/internal/logging"
	"github.com/Aman-CERP/pdfrag/internal/mcp"
	"github.com/Aman-CERP/pdfrag/internal/store"
)

type serveOptions struct {
	persistDir string
	timeout    time.Duration
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout with the tools
process_pdf, ask and status.

Stdout carries JSON-RPC only; logs go to ~/.pdfrag/logs/pdfrag.log.
With --persist-dir an existing index is loaded before serving.`,
		Example: `  pdfrag serve
  pdfrag serve --persist-dir ./report-index`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.persistDir, "persist-dir", "", "Index directory to load at startup")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Per tool call timeout (0 for none)")

	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if debugMode {
		level = "debug"
	}
	logger, cleanup, err := logging.Setup(logging.ServeConfig(level))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logger)

	ctrl, err := newController(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = ctrl.Close() }()

	if opts.persistDir != "" {
		if !store.Exists(opts.persistDir) {
			logger.Warn("no index to load, waiting for process_pdf", slog.String("dir", opts.persistDir))
		} else if err := ctrl.Load(ctx, opts.persistDir); err != nil {
			return err
		}
	}

	srv, err := mcp.NewServer(ctrl, mcp.WithLogger(logger), mcp.WithTimeout(opts.timeout))
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}
