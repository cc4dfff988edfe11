package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Aman-CERP/pdfrag/internal/pipeline"
)

// PlainRenderer writes one line per progress event.
type PlainRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	lastDone int
	warnings []string
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error {
	return nil
}

// Update implements Renderer. Embedding progress is printed once per batch.
func (r *PlainRenderer) Update(event pipeline.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Total > 0 {
		if event.Done > 0 && event.Done == r.lastDone {
			return
		}
		r.lastDone = event.Done
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", stageIcon(event.Stage), event.Done, event.Total, event.Message)
		return
	}
	if event.Message != "" {
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", stageIcon(event.Stage), event.Message)
	}
}

// Warn implements Renderer.
func (r *PlainRenderer) Warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.warnings = append(r.warnings, msg)
	_, _ = fmt.Fprintf(r.out, "WARN: %s\n", msg)
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(report *pipeline.ProcessReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if report == nil {
		return
	}
	_, _ = fmt.Fprintf(r.out, "Complete: %d pages, %d chunks indexed in %s",
		report.Pages, report.Chunks, report.Duration.Round(100*time.Millisecond))
	if report.PageWarnings > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d page warnings)", report.PageWarnings)
	}
	_, _ = fmt.Fprintln(r.out)
	if report.Persisted {
		_, _ = fmt.Fprintf(r.out, "Index saved to %s\n", report.PersistDir)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}
