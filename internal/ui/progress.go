package ui

import (
	"sync"
	"time"

	"github.com/Aman-CERP/pdfrag/internal/pipeline"
)

// etaSmoothing is the weight of a new ETA sample against the previous one.
const etaSmoothing = 0.3

// Tracker accumulates pipeline events for display. It is safe for
// concurrent use.
type Tracker struct {
	mu         sync.Mutex
	now        func() time.Time
	stage      pipeline.Stage
	message    string
	done       int
	total      int
	start      time.Time
	stageStart time.Time
	lastETA    time.Duration
	warnings   []string
}

// Snapshot is a point-in-time view of a Tracker.
type Snapshot struct {
	Stage    pipeline.Stage
	Message  string
	Done     int
	Total    int
	Progress float64
	Rate     float64
	ETA      time.Duration
	Elapsed  time.Duration
	Warnings int
}

// NewTracker creates a tracker positioned at the extract stage.
func NewTracker() *Tracker {
	return newTracker(time.Now)
}

func newTracker(now func() time.Time) *Tracker {
	t := now()
	return &Tracker{
		now:        now,
		stage:      pipeline.StageExtract,
		start:      t,
		stageStart: t,
	}
}

// Apply records event. Counters reset when the stage changes.
func (t *Tracker) Apply(event pipeline.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if event.Stage != t.stage {
		t.stage = event.Stage
		t.stageStart = t.now()
		t.done, t.total, t.lastETA = 0, 0, 0
	}
	if event.Message != "" {
		t.message = event.Message
	}
	if event.Total > 0 {
		t.total = event.Total
		t.done = event.Done
	}
}

// Warn records a warning.
func (t *Tracker) Warn(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.warnings = append(t.warnings, msg)
}

// Warnings returns a copy of the recorded warnings.
func (t *Tracker) Warnings() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.warnings...)
}

// Snapshot returns the current progress. It updates the smoothed ETA.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	s := Snapshot{
		Stage:    t.stage,
		Message:  t.message,
		Done:     t.done,
		Total:    t.total,
		Elapsed:  now.Sub(t.start),
		Warnings: len(t.warnings),
	}
	if t.total > 0 {
		s.Progress = min(float64(t.done)/float64(t.total), 1)
	}
	if secs := now.Sub(t.stageStart).Seconds(); secs > 0 && t.done > 0 {
		s.Rate = float64(t.done) / secs
	}
	s.ETA = t.eta(now, s.Progress)
	return s
}

// eta must be called with mu held.
func (t *Tracker) eta(now time.Time, progress float64) time.Duration {
	if progress <= 0 || progress >= 1 {
		return 0
	}
	elapsed := now.Sub(t.stageStart)
	raw := time.Duration(float64(elapsed)/progress) - elapsed
	if raw < 0 {
		return 0
	}
	if t.lastETA == 0 {
		t.lastETA = raw
		return raw
	}
	t.lastETA = time.Duration(etaSmoothing*float64(raw) + (1-etaSmoothing)*float64(t.lastETA))
	return t.lastETA
}
