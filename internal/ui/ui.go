// Package ui renders document processing progress and index status in the
// terminal: a bubbletea view for interactive terminals and plain lines for
// pipes and CI.
package ui

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/pdfrag/internal/pipeline"
)

// stages lists the Process stages in display order.
var stages = []pipeline.Stage{
	pipeline.StageExtract,
	pipeline.StageChunk,
	pipeline.StageEmbed,
	pipeline.StagePersist,
}

// stageName returns the human-readable stage name.
func stageName(s pipeline.Stage) string {
	switch s {
	case pipeline.StageExtract:
		return "Extract"
	case pipeline.StageChunk:
		return "Chunk"
	case pipeline.StageEmbed:
		return "Embed"
	case pipeline.StagePersist:
		return "Persist"
	case pipeline.StageDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// stageIcon returns the short tag used in plain output.
func stageIcon(s pipeline.Stage) string {
	switch s {
	case pipeline.StageExtract:
		return "EXTRACT"
	case pipeline.StageChunk:
		return "CHUNK"
	case pipeline.StageEmbed:
		return "EMBED"
	case pipeline.StagePersist:
		return "PERSIST"
	case pipeline.StageDone:
		return "DONE"
	default:
		return "???"
	}
}

// stageOrder returns the position of s in stages, or len(stages) once done.
func stageOrder(s pipeline.Stage) int {
	for i, st := range stages {
		if st == s {
			return i
		}
	}
	return len(stages)
}

// Renderer displays the progress of one Process call.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// Update receives a progress event from the pipeline.
	Update(event pipeline.Event)

	// Warn records a non-fatal problem, such as a page that failed extraction.
	Warn(msg string)

	// Complete shows the summary of a successful run.
	Complete(report *pipeline.ProcessReport)

	// Stop stops the renderer and restores the terminal.
	Stop() error
}

// Config configures the renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	Document   string
}

// ConfigOption modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithDocument sets the document name shown in the header.
func WithDocument(name string) ConfigOption {
	return func(c *Config) {
		c.Document = name
	}
}

// NewConfig creates a Config writing to output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns the TUI renderer for interactive terminals and the
// plain renderer for pipes, CI, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if w is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
