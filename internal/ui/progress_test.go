package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/pdfrag/internal/pipeline"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTracker_StageChangeResetsCounters(t *testing.T) {
	// Given: a tracker halfway through embedding
	clock := &fakeClock{t: time.Unix(0, 0)}
	tr := newTracker(clock.now)
	tr.Apply(pipeline.Event{Stage: pipeline.StageEmbed, Message: "Embedding chunks", Done: 5, Total: 10})

	// When: the pipeline moves on
	tr.Apply(pipeline.Event{Stage: pipeline.StagePersist, Message: "Persisting index"})

	// Then
	snap := tr.Snapshot()
	assert.Equal(t, pipeline.StagePersist, snap.Stage)
	assert.Equal(t, "Persisting index", snap.Message)
	assert.Zero(t, snap.Done)
	assert.Zero(t, snap.Total)
	assert.Zero(t, snap.Progress)
}

func TestTracker_ProgressRateAndETA(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	tr := newTracker(clock.now)
	tr.Apply(pipeline.Event{Stage: pipeline.StageEmbed, Total: 4})

	clock.advance(10 * time.Second)
	tr.Apply(pipeline.Event{Stage: pipeline.StageEmbed, Done: 2, Total: 4})
	snap := tr.Snapshot()

	assert.InDelta(t, 0.5, snap.Progress, 1e-9)
	assert.InDelta(t, 0.2, snap.Rate, 1e-9)
	assert.Equal(t, 10*time.Second, snap.ETA)
	assert.Equal(t, 10*time.Second, snap.Elapsed)

	// Smoothing blends the next sample with the previous estimate.
	clock.advance(5 * time.Second)
	tr.Apply(pipeline.Event{Stage: pipeline.StageEmbed, Done: 3, Total: 4})
	snap = tr.Snapshot()
	assert.Equal(t, time.Duration(0.3*float64(5*time.Second)+0.7*float64(10*time.Second)), snap.ETA)
}

func TestTracker_CompleteHasNoETA(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	tr := newTracker(clock.now)
	tr.Apply(pipeline.Event{Stage: pipeline.StageEmbed, Total: 4})
	clock.advance(time.Second)
	tr.Apply(pipeline.Event{Stage: pipeline.StageEmbed, Done: 4, Total: 4})

	snap := tr.Snapshot()

	assert.Equal(t, 1.0, snap.Progress)
	assert.Zero(t, snap.ETA)
}

func TestTracker_Warnings(t *testing.T) {
	tr := NewTracker()
	tr.Warn("page 1 failed")
	tr.Warn("page 4 failed")

	got := tr.Warnings()
	got[0] = "changed"

	assert.Equal(t, []string{"page 1 failed", "page 4 failed"}, tr.Warnings())
	assert.Equal(t, 2, tr.Snapshot().Warnings)
}
