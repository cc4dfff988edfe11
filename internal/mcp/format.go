package mcp

import (
	"fmt"
	"strings"
)

// previewChars limits the chunk text shown per source in markdown output.
const previewChars = 200

// FormatAnswer renders an answer and its sources as markdown.
func FormatAnswer(question string, out AskOutput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Answer\n\n%s\n", strings.TrimSpace(out.Answer))
	if len(out.Sources) == 0 {
		return sb.String()
	}

	fmt.Fprintf(&sb, "\n### Sources for %q\n\n", question)
	for _, s := range out.Sources {
		fmt.Fprintf(&sb, "%d. chars %d-%d (score: %.2f)\n\n", s.Rank, s.Start, s.End, s.Score)
		for _, line := range strings.Split(preview(s.Content), "\n") {
			fmt.Fprintf(&sb, "   > %s\n", line)
		}
		sb.WriteString("\n")
	}
	if out.DroppedChunks > 0 {
		fmt.Fprintf(&sb, "_%d lower-ranked chunks did not fit the prompt._\n", out.DroppedChunks)
	}
	return sb.String()
}

// FormatReport renders a process_pdf result as markdown.
func FormatReport(out ProcessOutput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Processed %s\n\n", out.Source)
	fmt.Fprintf(&sb, "- **Pages:** %d\n", out.Pages)
	fmt.Fprintf(&sb, "- **Chunks:** %d\n", out.Chunks)
	fmt.Fprintf(&sb, "- **Document ID:** `%s`\n", out.DocumentID)
	if out.Encrypted {
		sb.WriteString("- **Encrypted:** yes\n")
	}
	if out.Persisted {
		fmt.Fprintf(&sb, "- **Saved to:** `%s`\n", out.PersistDir)
	}
	for _, w := range out.Warnings {
		fmt.Fprintf(&sb, "- ⚠ %s\n", w)
	}
	return sb.String()
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= previewChars {
		return s
	}
	return string(r[:previewChars]) + "..."
}
