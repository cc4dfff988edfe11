package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pdfrag/internal/embed"
	"github.com/Aman-CERP/pdfrag/internal/store"
	"github.com/Aman-CERP/pdfrag/internal/ui"
)

// embedderProbeTimeout bounds the embedder availability check.
const embedderProbeTimeout = 3 * time.Second

func newStatusCmd() *cobra.Command {
	var (
		persistDir string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Describe a persisted index",
		Long: `Show the document, chunk count, embedding model and on-disk size of a
persisted index, and whether the configured embedder is reachable.`,
		Example: `  pdfrag status --persist-dir ./report-index
  pdfrag status --persist-dir ./report-index --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := collectStatus(cmd.Context(), persistDir)
			r := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))
			if jsonOutput {
				return r.RenderJSON(info)
			}
			return r.Render(info)
		},
	}

	cmd.Flags().StringVar(&persistDir, "persist-dir", "", "Index directory (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("persist-dir")

	return cmd
}

// collectStatus gathers what is known about the index in dir. Problems are
// reported in the Error field rather than failing the command.
func collectStatus(ctx context.Context, dir string) ui.IndexStatus {
	info := ui.IndexStatus{Dir: dir}
	if !store.Exists(dir) {
		info.Error = "no index in this directory"
		return info
	}

	meta, err := store.Inspect(ctx, dir)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Exists = true
	info.DocumentID = meta.DocumentID
	info.Chunks = meta.Chunks
	info.Dimensions = meta.Dimensions
	info.EmbedderModel = meta.Model
	info.FormatVersion = meta.FormatVersion
	info.HasGraph = meta.HasGraph
	if t, err := time.Parse(time.RFC3339Nano, meta.CreatedAt); err == nil {
		info.CreatedAt = t
	}
	info.ChunksSize = fileSize(filepath.Join(dir, store.ChunksFile))
	if meta.HasGraph {
		info.GraphSize = fileSize(filepath.Join(dir, store.GraphFile))
	}

	cfg, err := loadConfig()
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Embedder = cfg.Embeddings.Provider
	probeCtx, cancel := context.WithTimeout(ctx, embedderProbeTimeout)
	defer cancel()
	e, err := embed.New(probeCtx, cfg)
	if err != nil {
		return info
	}
	defer func() { _ = e.Close() }()
	info.EmbedderReady = e.Available(probeCtx) && e.ModelName() == meta.Model
	return info
}

func fileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return st.Size()
}
