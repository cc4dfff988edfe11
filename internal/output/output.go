// Package output formats command results for the terminal: status lines,
// answers, and the chunks an answer was drawn from.
package output

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/pdfrag/internal/pipeline"
)

// PreviewChars is how much of a source chunk is printed under an answer.
const PreviewChars = 200

// Writer prints CLI output. Write errors are ignored.
type Writer struct {
	out io.Writer
}

// New creates a Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints msg after icon, or indented when icon is empty.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
		return
	}
	_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
}

// Statusf is Status with formatting.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success line.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf is Success with formatting.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning line.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf is Warning with formatting.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error line.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf is Error with formatting.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Answer prints the question, the answer, and optionally the sources.
func (w *Writer) Answer(res *pipeline.QueryResult, showSources bool) {
	_, _ = fmt.Fprintf(w.out, "Question: %s\n", res.Question)
	_, _ = fmt.Fprintf(w.out, "Answer: %s\n", strings.TrimSpace(res.Answer))
	if showSources {
		w.Sources(res)
	}
}

// Sources prints each source chunk with its rank, score and a preview.
func (w *Writer) Sources(res *pipeline.QueryResult) {
	if len(res.Sources) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w.out)
	_, _ = fmt.Fprintln(w.out, "Sources:")
	for _, s := range res.Sources {
		_, _ = fmt.Fprintf(w.out, "  [%d] score %.3f, chars %d-%d\n", s.Rank, s.Score, s.Chunk.Start, s.Chunk.End)
		for _, line := range strings.Split(Preview(s.Chunk.Content, PreviewChars), "\n") {
			_, _ = fmt.Fprintf(w.out, "      %s\n", line)
		}
	}
	if res.DroppedChunks > 0 {
		_, _ = fmt.Fprintf(w.out, "  (%d lower-ranked chunks did not fit the prompt)\n", res.DroppedChunks)
	}
}

// Report prints the summary of a Process call.
func (w *Writer) Report(r *pipeline.ProcessReport) {
	enc := ""
	if r.Encrypted {
		enc = ", encrypted"
	}
	w.Successf("Processed %s (%d pages%s)", filepath.Base(r.Source), r.Pages, enc)
	w.Statusf("", "Document ID: %s", r.DocumentID)
	w.Statusf("", "Chunks: %d (%d dims)", r.Chunks, r.Dimensions)
	if r.Persisted {
		w.Statusf("", "Saved to: %s", r.PersistDir)
	}
	for _, warn := range r.Warnings {
		w.Warning(warn)
	}
}

// Preview returns the first n runes of s, with "..." appended when cut.
func Preview(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
