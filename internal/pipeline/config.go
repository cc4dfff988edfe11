package pipeline

import (
	"fmt"

	"github.com/Aman-CERP/pdfrag/internal/chunk"
	"github.com/Aman-CERP/pdfrag/internal/config"
	"github.com/Aman-CERP/pdfrag/internal/errors"
	"github.com/Aman-CERP/pdfrag/internal/llm"
	"github.com/Aman-CERP/pdfrag/internal/prompt"
	"github.com/Aman-CERP/pdfrag/internal/retrieve"
	"github.com/Aman-CERP/pdfrag/internal/store"
)

// Config holds the controller settings. It is validated once by New.
type Config struct {
	Chunking        chunk.Options
	Build           store.BuildOptions
	K               int
	MinScore        float32
	Template        string
	MaxContextChars int
	Generation      llm.Options
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		Chunking: chunk.Options{Size: chunk.DefaultSize, Overlap: chunk.DefaultOverlap},
		Build:    store.DefaultBuildOptions(),
		K:        retrieve.DefaultK,
		Template: config.DefaultTemplate,
	}
}

// FromConfig maps the application configuration onto controller settings.
func FromConfig(c *config.Config) Config {
	return Config{
		Chunking: chunk.Options{Size: c.Chunking.Size, Overlap: c.Chunking.Overlap},
		Build: store.BuildOptions{
			BatchSize:      c.Embeddings.BatchSize,
			Workers:        c.Embeddings.Workers,
			ExactThreshold: c.Index.ExactThreshold,
			M:              c.Index.M,
			EfSearch:       c.Index.EfSearch,
		},
		K:               c.Retrieval.K,
		MinScore:        float32(c.Retrieval.MinScore),
		Template:        c.PromptTemplate(),
		MaxContextChars: c.Prompt.MaxContextChars,
		Generation:      llm.OptionsFromConfig(c),
	}
}

// Validate checks every setting.
func (c Config) Validate() error {
	if _, err := chunk.New(c.Chunking); err != nil {
		return err
	}
	if _, err := retrieve.New(c.K, c.MinScore); err != nil {
		return err
	}
	if _, err := prompt.New(c.Template, c.MaxContextChars); err != nil {
		return err
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return errors.ConfigError(fmt.Sprintf("temperature must be between 0 and 2, got %g", c.Generation.Temperature), nil)
	}
	if c.Generation.MaxTokens < 0 {
		return errors.ConfigError("max tokens must be non-negative", nil)
	}
	return nil
}
