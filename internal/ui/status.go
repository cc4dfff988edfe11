package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// IndexStatus describes a persisted index.
type IndexStatus struct {
	Dir           string    `json:"dir"`
	Exists        bool      `json:"exists"`
	DocumentID    string    `json:"document_id,omitempty"`
	Chunks        int       `json:"chunks"`
	Dimensions    int       `json:"dimensions,omitempty"`
	EmbedderModel string    `json:"embedder_model,omitempty"`
	FormatVersion int       `json:"format_version,omitempty"`
	HasGraph      bool      `json:"has_graph"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	ChunksSize    int64     `json:"chunks_size"`
	GraphSize     int64     `json:"graph_size"`
	EmbedderReady bool      `json:"embedder_ready"`
	Embedder      string    `json:"embedder,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// StatusRenderer prints IndexStatus.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render prints info for a terminal.
func (r *StatusRenderer) Render(info IndexStatus) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index: "+info.Dir))

	if !info.Exists {
		_, _ = fmt.Fprintf(r.out, "  State:      %s\n", r.styles.Warning.Render("no index"))
		if info.Error != "" {
			_, _ = fmt.Fprintf(r.out, "  Error:      %s\n", r.styles.Error.Render(info.Error))
		}
		return nil
	}

	_, _ = fmt.Fprintf(r.out, "  Document:   %s\n", info.DocumentID)
	_, _ = fmt.Fprintf(r.out, "  Chunks:     %d\n", info.Chunks)
	if !info.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Created:    %s\n", formatTime(info.CreatedAt, time.Now()))
	}
	search := "exact"
	if info.HasGraph {
		search = "hnsw"
	}
	_, _ = fmt.Fprintf(r.out, "  Search:     %s\n", search)
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Storage:")
	_, _ = fmt.Fprintf(r.out, "    Chunks:   %s\n", FormatBytes(info.ChunksSize))
	if info.HasGraph {
		_, _ = fmt.Fprintf(r.out, "    Graph:    %s\n", FormatBytes(info.GraphSize))
	}
	_, _ = fmt.Fprintf(r.out, "    Total:    %s\n", FormatBytes(info.ChunksSize+info.GraphSize))
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Embedder:")
	_, _ = fmt.Fprintf(r.out, "    Model:    %s (%d dims)\n", info.EmbedderModel, info.Dimensions)
	if info.Embedder != "" {
		state := r.styles.Success.Render("ready")
		if !info.EmbedderReady {
			state = r.styles.Warning.Render("offline")
		}
		_, _ = fmt.Fprintf(r.out, "    Provider: %s (%s)\n", info.Embedder, state)
	}
	return nil
}

// RenderJSON prints info as indented JSON.
func (r *StatusRenderer) RenderJSON(info IndexStatus) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

// formatTime renders t relative to now.
func formatTime(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day") + " ago"
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatBytes formats a byte count for humans.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
