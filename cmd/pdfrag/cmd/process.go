package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pdfrag/internal/errors"
	"github.com/Aman-CERP/pdfrag/internal/extract"
	"github.com/Aman-CERP/pdfrag/internal/pipeline"
	"github.com/Aman-CERP/pdfrag/internal/ui"
)

type processOptions struct {
	pdf        string
	password   string
	persistDir string
	noTUI      bool
}

func newProcessCmd() *cobra.Command {
	var opts processOptions

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Extract, chunk and index a PDF",
		Long: `Extract the text of a PDF, split it into chunks, and embed every chunk.

With --persist-dir the index is saved so later 'ask', 'chat' and 'serve'
runs can load it instead of processing the PDF again.`,
		Example: `  # Index a PDF and save the index
  pdfrag process --pdf report.pdf --persist-dir ./report-index

  # Encrypted PDF, plain progress output
  pdfrag process --pdf locked.pdf --password s3cret --no-tui`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProcess(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.pdf, "pdf", "", "Path to the PDF file (required)")
	cmd.Flags().StringVar(&opts.password, "password", "", "Password for an encrypted PDF")
	cmd.Flags().StringVar(&opts.persistDir, "persist-dir", "", "Directory to save the index to")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Plain progress output even on a terminal")
	_ = cmd.MarkFlagRequired("pdf")

	return cmd
}

func runProcess(cmd *cobra.Command, opts processOptions) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctrl, err := newController(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = ctrl.Close() }()

	doc := extract.NewDocument(opts.pdf, opts.password)
	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.noTUI || debugMode),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithDocument(doc.Name()),
	))
	if err := renderer.Start(ctx); err != nil {
		return errors.InternalError("failed to start progress display", err)
	}

	report, err := ctrl.Process(ctx, doc, pipeline.ProcessOptions{
		PersistDir: opts.persistDir,
		Progress:   renderer.Update,
	})
	if err != nil {
		_ = renderer.Stop()
		return err
	}

	for _, w := range report.Warnings {
		renderer.Warn(w)
	}
	renderer.Complete(report)
	return renderer.Stop()
}
