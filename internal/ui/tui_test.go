package ui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/pdfrag/internal/pipeline"
)

func TestProcessModel_StageIndicators(t *testing.T) {
	// Given: a model whose tracker is embedding
	tr := NewTracker()
	tr.Apply(pipeline.Event{Stage: pipeline.StageEmbed, Message: "Embedding chunks", Done: 3, Total: 12})
	m := newProcessModel(tr, "report.pdf")
	m.styles = NoColorStyles()

	// When
	view := m.View()

	// Then: earlier stages are complete, later ones pending
	assert.Contains(t, view, "pdfrag • report.pdf")
	assert.Contains(t, view, "● Extract")
	assert.Contains(t, view, "● Chunk")
	assert.Contains(t, view, "Embed")
	assert.Contains(t, view, "○ Persist")
	assert.Contains(t, view, "3 / 12 chunks")
	assert.Contains(t, view, "25%")
}

func TestProcessModel_MessageWithoutTotal(t *testing.T) {
	tr := NewTracker()
	tr.Apply(pipeline.Event{Stage: pipeline.StageExtract, Message: "Extracting text from report.pdf"})
	m := newProcessModel(tr, "")
	m.styles = NoColorStyles()

	assert.Contains(t, m.View(), "Extracting text from report.pdf")
}

func TestProcessModel_Complete(t *testing.T) {
	m := newProcessModel(NewTracker(), "report.pdf")
	m.styles = NoColorStyles()

	_, cmd := m.Update(completeMsg{report: &pipeline.ProcessReport{
		Pages: 2, Chunks: 5, PageWarnings: 1, Persisted: true, PersistDir: "/tmp/idx",
	}})

	assert.NotNil(t, cmd)
	view := m.View()
	assert.Contains(t, view, "Document indexed")
	assert.Contains(t, view, "/tmp/idx")
	assert.Contains(t, view, "1 pages could not be read")
}

func TestProcessModel_CtrlCQuits(t *testing.T) {
	m := newProcessModel(NewTracker(), "")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	assert.NotNil(t, cmd)
	assert.Equal(t, "Cancelled.\n", m.View())
}

func TestProcessModel_WindowResize(t *testing.T) {
	m := newProcessModel(NewTracker(), "")

	m.Update(tea.WindowSizeMsg{Width: 30, Height: 10})
	assert.Equal(t, 20, m.bar.Width)

	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 100, m.bar.Width)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{42 * time.Second, "42s"},
		{2 * time.Minute, "2m"},
		{2*time.Minute + 15*time.Second, "2m 15s"},
		{time.Hour + 5*time.Minute, "1h 5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}
