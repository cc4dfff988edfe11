package output

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/pdfrag/internal/chunk"
	"github.com/Aman-CERP/pdfrag/internal/pipeline"
	"github.com/Aman-CERP/pdfrag/internal/retrieve"
)

func TestWriter_StatusLines(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"status with icon", func(w *Writer) { w.Status("🔍", "Checking embedder...") }, "🔍 Checking embedder...\n"},
		{"status indented", func(w *Writer) { w.Status("", "detail") }, "   detail\n"},
		{"success", func(w *Writer) { w.Successf("Indexed %d chunks", 3) }, "✅ Indexed 3 chunks\n"},
		{"warning", func(w *Writer) { w.Warningf("page %d unreadable", 2) }, "⚠️  page 2 unreadable\n"},
		{"error", func(w *Writer) { w.Errorf("failed: %s", "boom") }, "❌ failed: boom\n"},
		{"newline", func(w *Writer) { w.Newline() }, "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(New(buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_AnswerWithSources(t *testing.T) {
	// Given: an answer drawn from a long and a short chunk
	long := strings.Repeat("a", 250)
	res := &pipeline.QueryResult{
		Question: "Who issued this document?",
		Answer:   "  Acme Bank.\n",
		Sources: []retrieve.Result{
			{Chunk: chunk.Chunk{Content: "Invoice issued by Acme Bank.", Start: 0, End: 28}, Score: 0.91234, Rank: 1},
			{Chunk: chunk.Chunk{Content: long, Start: 28, End: 278}, Score: 0.5, Rank: 2},
		},
		DroppedChunks: 2,
	}
	buf := &bytes.Buffer{}

	// When
	New(buf).Answer(res, true)

	// Then
	out := buf.String()
	assert.Contains(t, out, "Question: Who issued this document?\n")
	assert.Contains(t, out, "Answer: Acme Bank.\n")
	assert.Contains(t, out, "[1] score 0.912, chars 0-28")
	assert.Contains(t, out, "Invoice issued by Acme Bank.")
	assert.Contains(t, out, strings.Repeat("a", 200)+"...")
	assert.NotContains(t, out, strings.Repeat("a", 201))
	assert.Contains(t, out, "2 lower-ranked chunks")
}

func TestWriter_AnswerWithoutSources(t *testing.T) {
	res := &pipeline.QueryResult{
		Question: "q",
		Answer:   "a",
		Sources:  []retrieve.Result{{Chunk: chunk.Chunk{Content: "hidden"}, Rank: 1}},
	}
	buf := &bytes.Buffer{}

	New(buf).Answer(res, false)

	assert.NotContains(t, buf.String(), "Sources:")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestWriter_Report(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).Report(&pipeline.ProcessReport{
		Source: filepath.Join("docs", "q3", "report.pdf"), DocumentID: "abc", Pages: 3, Encrypted: true,
		Chunks: 9, Dimensions: 256, Persisted: true, PersistDir: "/tmp/idx",
		Warnings: []string{"page 2: page object missing"},
	})

	out := buf.String()
	assert.Contains(t, out, "Processed report.pdf (3 pages, encrypted)")
	assert.NotContains(t, out, filepath.Join("docs", "q3"))
	assert.Contains(t, out, "Chunks: 9 (256 dims)")
	assert.Contains(t, out, "Saved to: /tmp/idx")
	assert.Contains(t, out, "page 2: page object missing")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("  short \n", 10))
	assert.Equal(t, "abc...", Preview("abcdef", 3))
	assert.Equal(t, "héé...", Preview("hééllo", 3))
}
