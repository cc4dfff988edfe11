package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/pdfrag/internal/pipeline"
)

// TUIRenderer shows progress with bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *processModel
	tracker *Tracker
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. It fails when the output is not a
// terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}
	tracker := NewTracker()
	model := newProcessModel(tracker, cfg.Document)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}
	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		return nil
	}

	ctx, r.cancel = context.WithCancel(ctx)
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// Update implements Renderer.
func (r *TUIRenderer) Update(event pipeline.Event) {
	r.tracker.Apply(event)
	r.send(refreshMsg{})
}

// Warn implements Renderer.
func (r *TUIRenderer) Warn(msg string) {
	r.tracker.Warn(msg)
	r.send(refreshMsg{})
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(report *pipeline.ProcessReport) {
	r.tracker.Apply(pipeline.Event{Stage: pipeline.StageDone})
	r.send(completeMsg{report: report})
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Stop implements Renderer. It waits briefly for the final frame.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	p, cancel := r.program, r.cancel
	r.mu.Unlock()
	if p == nil {
		return nil
	}

	select {
	case <-r.done:
	case <-time.After(500 * time.Millisecond):
		p.Quit()
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
		}
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

type refreshMsg struct{}

type completeMsg struct {
	report *pipeline.ProcessReport
}

type tickMsg time.Time

// processModel is the bubbletea model for one Process call.
type processModel struct {
	tracker  *Tracker
	document string
	width    int
	spinner  spinner.Model
	bar      progress.Model
	styles   Styles
	report   *pipeline.ProcessReport
	complete bool
	quitting bool
}

func newProcessModel(tracker *Tracker, document string) *processModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	return &processModel{
		tracker:  tracker,
		document: document,
		width:    80,
		spinner:  s,
		bar: progress.New(
			progress.WithSolidFill(ColorLime),
			progress.WithWidth(50),
			progress.WithoutPercentage(),
		),
		styles: DefaultStyles(),
	}
}

// Init implements tea.Model.
func (m *processModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *processModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-20, 20)
	case completeMsg:
		m.complete = true
		m.report = msg.report
		return m, tea.Quit
	case tickMsg:
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *processModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	snap := m.tracker.Snapshot()
	title := "pdfrag"
	if m.document != "" {
		title = "pdfrag • " + m.document
	}

	sections := []string{
		m.styles.Header.Render(title),
		m.renderStages(snap.Stage),
		m.renderProgress(snap),
	}
	if snap.Warnings > 0 {
		sections = append(sections, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", snap.Warnings)))
	}
	sections = append(sections, m.styles.Dim.Render("ctrl+c to cancel"))
	return strings.Join(sections, "\n") + "\n"
}

func (m *processModel) renderStages(current pipeline.Stage) string {
	cur := stageOrder(current)
	parts := make([]string, 0, len(stages))
	for i, s := range stages {
		switch {
		case i < cur:
			parts = append(parts, m.styles.Success.Render("● "+stageName(s)))
		case i == cur:
			parts = append(parts, m.styles.Active.Render(m.spinner.View()+" "+stageName(s)))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+stageName(s)))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *processModel) renderProgress(snap Snapshot) string {
	if snap.Total == 0 {
		return fmt.Sprintf("%s %s", m.spinner.View(), m.styles.Label.Render(snap.Message))
	}
	line := fmt.Sprintf("%s  %s", m.bar.ViewAs(snap.Progress),
		m.styles.Active.Render(fmt.Sprintf("%3.0f%%", snap.Progress*100)))
	detail := fmt.Sprintf("%d / %d chunks", snap.Done, snap.Total)
	if snap.Rate > 0 {
		detail += fmt.Sprintf("  •  %.1f/s", snap.Rate)
	}
	if snap.ETA > 0 {
		detail += "  •  ETA " + formatDuration(snap.ETA)
	}
	return line + "\n" + m.styles.Label.Render(detail)
}

func (m *processModel) renderComplete() string {
	if m.report == nil {
		return m.styles.Success.Render("✓ Done") + "\n"
	}
	lines := []string{
		m.styles.Success.Render("✓ Document indexed"),
		fmt.Sprintf("%s %d", m.styles.Label.Render("Pages:   "), m.report.Pages),
		fmt.Sprintf("%s %d", m.styles.Label.Render("Chunks:  "), m.report.Chunks),
		fmt.Sprintf("%s %s", m.styles.Label.Render("Duration:"), formatDuration(m.report.Duration)),
	}
	if m.report.Persisted {
		lines = append(lines, fmt.Sprintf("%s %s", m.styles.Label.Render("Saved to:"), m.report.PersistDir))
	}
	if m.report.PageWarnings > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d pages could not be read", m.report.PageWarnings)))
	}
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorLime)).
		Padding(0, 2)
	return panel.Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration formats d for humans.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m, s := int(d.Minutes()), int(d.Seconds())%60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

var _ Renderer = (*TUIRenderer)(nil)
var _ Renderer = (*PlainRenderer)(nil)
