package pipeline

import (
	"encoding/json"
	"time"

	"github.com/Aman-CERP/pdfrag/internal/retrieve"
)

// State is the document lifecycle state of a Controller.
type State int

const (
	// Unprocessed means no document has been processed or loaded.
	Unprocessed State = iota
	// Processing means a Process or Load call is running.
	Processing
	// Ready means an index is available for questions.
	Ready
	// Failed means the last Process failed and no earlier index exists.
	Failed
)

func (s State) String() string {
	switch s {
	case Unprocessed:
		return "unprocessed"
	case Processing:
		return "processing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Stage identifies a step of Process for progress reporting.
type Stage string

const (
	StageExtract Stage = "extract"
	StageChunk   Stage = "chunk"
	StageEmbed   Stage = "embed"
	StagePersist Stage = "persist"
	StageDone    Stage = "done"
)

// Event reports Process progress. Done and Total are only set for StageEmbed.
type Event struct {
	Stage   Stage
	Message string
	Done    int
	Total   int
}

// ProcessOptions configures a single Process call.
type ProcessOptions struct {
	// PersistDir, when set, receives the new index before it is swapped in.
	PersistDir string

	// Progress receives stage events. Calls are serialized.
	Progress func(Event)
}

// ProcessReport summarizes a successful Process call.
type ProcessReport struct {
	DocumentID   string        `json:"document_id"`
	Source       string        `json:"source"`
	Pages        int           `json:"pages"`
	PageWarnings int           `json:"page_warnings"`
	Warnings     []string      `json:"warnings,omitempty"`
	Encrypted    bool          `json:"encrypted"`
	Chunks       int           `json:"chunks"`
	Dimensions   int           `json:"dimensions"`
	Persisted    bool          `json:"persisted"`
	PersistDir   string        `json:"persist_dir,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// QueryResult is the answer to one question with the chunks it was built from.
type QueryResult struct {
	Question      string            `json:"question"`
	Answer        string            `json:"answer"`
	Sources       []retrieve.Result `json:"sources"`
	DroppedChunks int               `json:"dropped_chunks"`
	Model         string            `json:"model"`
	Duration      time.Duration     `json:"duration"`
}

// Status is a snapshot of a Controller.
type Status struct {
	State         State     `json:"state"`
	DocumentID    string    `json:"document_id,omitempty"`
	Source        string    `json:"source,omitempty"`
	Chunks        int       `json:"chunks"`
	Dimensions    int       `json:"dimensions,omitempty"`
	EmbedderModel string    `json:"embedder_model,omitempty"`
	LastError     error     `json:"-"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MarshalJSON adds the last error message.
func (s Status) MarshalJSON() ([]byte, error) {
	type plain Status
	out := struct {
		plain
		LastError string `json:"last_error,omitempty"`
	}{plain: plain(s)}
	if s.LastError != nil {
		out.LastError = s.LastError.Error()
	}
	return json.Marshal(out)
}
