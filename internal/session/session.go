// Package session persists chat transcripts. Each session lives in its own
// directory, <storage>/<id>/session.json, keyed by a random UUID and
// optionally named by the user.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/pdfrag/internal/pipeline"
	"github.com/Aman-CERP/pdfrag/pkg/version"
)

// Session is one chat transcript.
type Session struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	Source     string    `json:"source,omitempty"`
	DocumentID string    `json:"document_id,omitempty"`
	PersistDir string    `json:"persist_dir,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsed   time.Time `json:"last_used"`
	Version    string    `json:"version"`
	Turns      []Turn    `json:"turns"`

	// Dir is where the session is stored. Computed, not persisted.
	Dir string `json:"-"`
}

// Turn is one question with its answer or error.
type Turn struct {
	Question string      `json:"question"`
	Answer   string      `json:"answer,omitempty"`
	Error    string      `json:"error,omitempty"`
	Sources  []SourceRef `json:"sources,omitempty"`
	AskedAt  time.Time   `json:"asked_at"`
}

// SourceRef identifies a chunk an answer was drawn from.
type SourceRef struct {
	Rank       int     `json:"rank"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
}

// Info summarizes a session for listing.
type Info struct {
	ID       string
	Name     string
	Source   string
	Turns    int
	LastUsed time.Time
	Size     int64
}

// New creates a session with a fresh ID stored under storage.
func New(name, source, dir string, now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Name:      name,
		Source:    source,
		CreatedAt: now,
		LastUsed:  now,
		Version:   version.Version,
		Dir:       dir,
	}
}

// Label returns the name, or the ID when unnamed.
func (s *Session) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// Record appends a turn for question. Exactly one of res and err is used.
func (s *Session) Record(question string, res *pipeline.QueryResult, err error, now time.Time) {
	turn := Turn{Question: question, AskedAt: now}
	if err != nil {
		turn.Error = err.Error()
	} else if res != nil {
		turn.Answer = res.Answer
		for _, src := range res.Sources {
			turn.Sources = append(turn.Sources, SourceRef{
				Rank:       src.Rank,
				ChunkIndex: src.Chunk.Index,
				Score:      src.Score,
				Start:      src.Chunk.Start,
				End:        src.Chunk.End,
			})
		}
	}
	s.Turns = append(s.Turns, turn)
	s.LastUsed = now
}

// Attach records the document the session is answering from.
func (s *Session) Attach(st pipeline.Status, persistDir string) {
	s.Source = st.Source
	s.DocumentID = st.DocumentID
	s.PersistDir = persistDir
}

// IsStale reports whether the session was last used before now-maxAge.
func (s *Session) IsStale(maxAge time.Duration, now time.Time) bool {
	return now.Sub(s.LastUsed) > maxAge
}

func (s *Session) info(size int64) *Info {
	return &Info{
		ID:       s.ID,
		Name:     s.Name,
		Source:   s.Source,
		Turns:    len(s.Turns),
		LastUsed: s.LastUsed,
		Size:     size,
	}
}
