// Package cmd provides the CLI commands for pdfrag.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pdfrag/internal/errors"
	"github.com/Aman-CERP/pdfrag/internal/logging"
	"github.com/Aman-CERP/pdfrag/internal/profiling"
	"github.com/Aman-CERP/pdfrag/pkg/version"
)

// Global flags
var (
	debugMode      bool
	configFile     string
	loggingCleanup func()

	profileOpts profiling.Options
	profiler    *profiling.Session
)

// NewRootCmd creates the root command for the pdfrag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdfrag",
		Short: "Ask questions about a PDF document",
		Long: `pdfrag extracts the text of a PDF, splits it into overlapping chunks,
indexes their embeddings, and answers questions from the chunks most
similar to each question.

Embeddings and answers come from Ollama or OpenAI, or from the offline
static providers (provider: static) which need no network.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("pdfrag version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.pdfrag/logs/")
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file (YAML or TOML) applied over the user and project config")

	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newProcessCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging installs the default logger and starts any
// requested profiles. serve replaces the logger with a file-only one
// because stdio carries JSON-RPC.
func startProfilingAndLogging(cmd *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}
	cfg.Stderr = cmd.ErrOrStderr()

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	if debugMode {
		slog.Debug("debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}

	if profileOpts.Enabled() {
		profiler, err = profiling.Start(profileOpts)
		if err != nil {
			return err
		}
	}
	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	err := profiler.Stop()
	profiler = nil
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	if err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		_ = stopProfilingAndLogging(root, nil)
		_, _ = fmt.Fprint(root.ErrOrStderr(), formatError(err))
		return exitCode(err)
	}
	return 0
}

// formatError renders coded errors with their hint; flag and usage errors
// from cobra are printed as is.
func formatError(err error) string {
	if errors.KindOf(err) == "" {
		return fmt.Sprintf("Error: %v\n", err)
	}
	if debugMode {
		return errors.FormatForUser(err, true) + "\n"
	}
	return errors.FormatForCLI(err)
}

// exitCode maps an error to a process exit code: 2 for configuration or
// input problems, 130 for interruption, 1 otherwise.
func exitCode(err error) int {
	switch errors.KindOf(err) {
	case errors.KindConfig, errors.KindValidation:
		return 2
	case errors.KindCancelled:
		return 130
	default:
		return 1
	}
}
