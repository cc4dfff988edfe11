package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/Aman-CERP/pdfrag/internal/config"
	"github.com/Aman-CERP/pdfrag/internal/embed"
	"github.com/Aman-CERP/pdfrag/internal/errors"
	"github.com/Aman-CERP/pdfrag/internal/extract"
	"github.com/Aman-CERP/pdfrag/internal/llm"
	"github.com/Aman-CERP/pdfrag/internal/pipeline"
	"github.com/Aman-CERP/pdfrag/internal/store"
)

// loadConfig builds the configuration for the working directory. A file
// given with --config is applied over the user and project files and below
// the environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	if configFile == "" {
		return cfg, nil
	}
	if err := cfg.LoadFile(configFile); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newController creates the providers selected by cfg and a controller
// that owns them.
func newController(ctx context.Context, cfg *config.Config) (*pipeline.Controller, error) {
	embedder, err := embed.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	generator, err := llm.New(ctx, cfg)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	ctrl, err := pipeline.New(pipeline.FromConfig(cfg), pipeline.Dependencies{
		Embedder:  embedder,
		Generator: generator,
		Logger:    slog.Default(),
	})
	if err != nil {
		_ = embedder.Close()
		_ = generator.Close()
		return nil, err
	}
	return ctrl, nil
}

// indexSource names where the document index comes from.
type indexSource struct {
	PDF        string
	Password   string
	PersistDir string
}

// openIndex makes an index current in ctrl: the one persisted in
// PersistDir if it exists, otherwise one built from PDF (and persisted to
// PersistDir when set). The report is nil when an index was loaded.
func openIndex(ctx context.Context, ctrl *pipeline.Controller, src indexSource, progress func(pipeline.Event)) (*pipeline.ProcessReport, error) {
	if src.PersistDir != "" && store.Exists(src.PersistDir) {
		if err := ctrl.Load(ctx, src.PersistDir); err != nil {
			return nil, err
		}
		slog.Info("using persisted index", slog.String("dir", src.PersistDir))
		return nil, nil
	}
	if src.PDF == "" {
		if src.PersistDir != "" {
			return nil, errors.New(errors.ErrCodeIndexNotBuilt, "no index found in "+src.PersistDir, nil).
				WithSuggestion("Pass --pdf to build it, or run 'pdfrag process --pdf FILE --persist-dir " + src.PersistDir + "'")
		}
		return nil, errors.New(errors.ErrCodeInvalidInput, "no document given", nil).
			WithSuggestion("Pass --pdf FILE or --persist-dir DIR")
	}

	return ctrl.Process(ctx, extract.NewDocument(src.PDF, src.Password), pipeline.ProcessOptions{
		PersistDir: src.PersistDir,
		Progress:   progress,
	})
}
