package mcp

import (
	"time"

	"github.com/Aman-CERP/pdfrag/internal/pipeline"
)

// ProcessInput is the input of the process_pdf tool.
type ProcessInput struct {
	Path       string `json:"path" jsonschema:"path to the PDF file to process"`
	Password   string `json:"password,omitempty" jsonschema:"password for an encrypted PDF"`
	PersistDir string `json:"persist_dir,omitempty" jsonschema:"directory to save the index to"`
}

// ProcessOutput is the result of the process_pdf tool.
type ProcessOutput struct {
	DocumentID   string   `json:"document_id"`
	Source       string   `json:"source"`
	Pages        int      `json:"pages"`
	PageWarnings int      `json:"page_warnings"`
	Warnings     []string `json:"warnings,omitempty"`
	Encrypted    bool     `json:"encrypted"`
	Chunks       int      `json:"chunks"`
	Dimensions   int      `json:"dimensions"`
	Persisted    bool     `json:"persisted"`
	PersistDir   string   `json:"persist_dir,omitempty"`
	DurationMS   int64    `json:"duration_ms"`
}

// AskInput is the input of the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the processed document"`
}

// AskOutput is the result of the ask tool.
type AskOutput struct {
	Answer        string         `json:"answer"`
	Sources       []SourceOutput `json:"sources"`
	DroppedChunks int            `json:"dropped_chunks"`
	Model         string         `json:"model"`
}

// SourceOutput is one chunk an answer was drawn from.
type SourceOutput struct {
	Rank    int     `json:"rank"`
	Score   float64 `json:"score" jsonschema:"cosine similarity between -1 and 1"`
	Start   int     `json:"start"`
	End     int     `json:"end"`
	Content string  `json:"content"`
}

// StatusInput is the input of the status tool (no parameters).
type StatusInput struct{}

// StatusOutput is the result of the status tool.
type StatusOutput struct {
	State         string `json:"state"`
	DocumentID    string `json:"document_id,omitempty"`
	Source        string `json:"source,omitempty"`
	Chunks        int    `json:"chunks"`
	Dimensions    int    `json:"dimensions,omitempty"`
	EmbedderModel string `json:"embedder_model,omitempty"`
	LastError     string `json:"last_error,omitempty"`
	UpdatedAt     string `json:"updated_at"`
}

func toProcessOutput(r *pipeline.ProcessReport) ProcessOutput {
	return ProcessOutput{
		DocumentID:   r.DocumentID,
		Source:       r.Source,
		Pages:        r.Pages,
		PageWarnings: r.PageWarnings,
		Warnings:     r.Warnings,
		Encrypted:    r.Encrypted,
		Chunks:       r.Chunks,
		Dimensions:   r.Dimensions,
		Persisted:    r.Persisted,
		PersistDir:   r.PersistDir,
		DurationMS:   r.Duration.Milliseconds(),
	}
}

func toAskOutput(r *pipeline.QueryResult) AskOutput {
	out := AskOutput{
		Answer:        r.Answer,
		Sources:       make([]SourceOutput, 0, len(r.Sources)),
		DroppedChunks: r.DroppedChunks,
		Model:         r.Model,
	}
	for _, s := range r.Sources {
		out.Sources = append(out.Sources, SourceOutput{
			Rank:    s.Rank,
			Score:   float64(s.Score),
			Start:   s.Chunk.Start,
			End:     s.Chunk.End,
			Content: s.Chunk.Content,
		})
	}
	return out
}

func toStatusOutput(s pipeline.Status) StatusOutput {
	out := StatusOutput{
		State:         s.State.String(),
		DocumentID:    s.DocumentID,
		Source:        s.Source,
		Chunks:        s.Chunks,
		Dimensions:    s.Dimensions,
		EmbedderModel: s.EmbedderModel,
		UpdatedAt:     s.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if s.LastError != nil {
		out.LastError = s.LastError.Error()
	}
	return out
}
