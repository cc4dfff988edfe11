package mcp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAnswer(t *testing.T) {
	out := AskOutput{
		Answer: "Acme Bank issued it.\n",
		Sources: []SourceOutput{
			{Rank: 1, Score: 0.876, Start: 0, End: 50, Content: "Invoice #123 dated 2024-01-15 issued by Acme Bank."},
			{Rank: 2, Score: 0.4, Start: 50, End: 350, Content: strings.Repeat("x", 300)},
		},
		DroppedChunks: 1,
	}

	md := FormatAnswer("Who issued this document?", out)

	assert.True(t, strings.HasPrefix(md, "## Answer\n\nAcme Bank issued it.\n"))
	assert.Contains(t, md, `### Sources for "Who issued this document?"`)
	assert.Contains(t, md, "1. chars 0-50 (score: 0.88)")
	assert.Contains(t, md, "> Invoice #123")
	assert.Contains(t, md, strings.Repeat("x", 200)+"...")
	assert.NotContains(t, md, strings.Repeat("x", 201))
	assert.Contains(t, md, "1 lower-ranked chunks")
}

func TestFormatAnswer_NoSources(t *testing.T) {
	md := FormatAnswer("q", AskOutput{Answer: "I don't know."})

	assert.Equal(t, "## Answer\n\nI don't know.\n", md)
}

func TestFormatReport(t *testing.T) {
	md := FormatReport(ProcessOutput{
		Source: "report.pdf", DocumentID: "abc", Pages: 2, Chunks: 5,
		Encrypted: true, Persisted: true, PersistDir: "/tmp/idx",
		Warnings: []string{"page 2: page object missing"},
	})

	assert.Contains(t, md, "## Processed report.pdf")
	assert.Contains(t, md, "**Chunks:** 5")
	assert.Contains(t, md, "**Encrypted:** yes")
	assert.Contains(t, md, "`/tmp/idx`")
	assert.Contains(t, md, "page 2: page object missing")
}
