package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/Digital-Shane/episode-tidy/internal/engine"
	"github.com/Digital-Shane/episode-tidy/internal/tui/theme"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// recentOutcomes is how many finished files stay visible under the bar.
const recentOutcomes = 8

type runEventMsg struct {
	event engine.Event
	done  bool
}

// RunProgressModel displays live progress while the engine processes files.
// It consumes the engine's outcome stream; outcomes arrive in completion
// order and are listed as they land.
type RunProgressModel struct {
	engine  *engine.Engine
	events  <-chan engine.Event
	summary engine.Summary

	recent   []engine.Outcome
	fatalErr error

	width  int
	height int

	progress progress.Model
	theme    theme.Theme

	ctx    context.Context
	cancel context.CancelFunc

	done bool
}

// NewRunProgressModel creates a progress model for eng.
func NewRunProgressModel(eng *engine.Engine, th theme.Theme) *RunProgressModel {
	gradient := th.ProgressGradient()
	prog := progress.New(progress.WithGradient(gradient[0], gradient[1]))
	prog.Width = 50

	return &RunProgressModel{
		engine:   eng,
		summary:  eng.SummarySnapshot(),
		width:    80,
		height:   16,
		progress: prog,
		theme:    th,
	}
}

// FatalErr returns the run-fatal error, if any, once the model has quit.
func (m *RunProgressModel) FatalErr() error { return m.fatalErr }

// Summary returns the final run summary once the model has quit.
func (m *RunProgressModel) Summary() engine.Summary { return m.summary }

// Init starts the engine.
func (m *RunProgressModel) Init() tea.Cmd {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.events = m.engine.Start(m.ctx)
	return m.waitForEvent()
}

func (m *RunProgressModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return runEventMsg{done: true}
		}
		return runEventMsg{event: event}
	}
}

// Update processes Bubble Tea messages.
func (m *RunProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.progress.Width = msg.Width - 4
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case runEventMsg:
		return m.handleRunEvent(msg)
	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *RunProgressModel) handleRunEvent(msg runEventMsg) (tea.Model, tea.Cmd) {
	if msg.done {
		m.done = true
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		return m, tea.Quit
	}

	m.summary = msg.event.Summary
	if msg.event.Err != nil {
		m.fatalErr = msg.event.Err
	}
	if msg.event.Outcome != nil {
		m.recent = append(m.recent, *msg.event.Outcome)
		if len(m.recent) > recentOutcomes {
			m.recent = m.recent[len(m.recent)-recentOutcomes:]
		}
	}

	ratio := 0.0
	if m.summary.TotalFiles > 0 {
		ratio = float64(m.summary.ProcessedFiles) / float64(m.summary.TotalFiles)
	}
	return m, tea.Batch(m.progress.SetPercent(ratio), m.waitForEvent())
}

// View renders the progress display.
func (m *RunProgressModel) View() string {
	var b strings.Builder

	b.WriteString(m.theme.Title().Render("episode-tidy"))
	b.WriteString("\n\n")
	b.WriteString(m.progress.View())
	b.WriteString("\n\n")

	b.WriteString(m.theme.Muted().Render(fmt.Sprintf(
		"%d/%d files · %d renamed · %d deleted · %d skipped · %d failed · %d workers",
		m.summary.ProcessedFiles, m.summary.TotalFiles,
		m.summary.Renamed, m.summary.Deleted, m.summary.Skipped, m.summary.Failed,
		m.summary.ActiveWorkers,
	)))
	b.WriteString("\n\n")

	for _, outcome := range m.recent {
		b.WriteString(m.styleFor(outcome).Render(outcome.Describe()))
		b.WriteString("\n")
	}

	if m.fatalErr != nil {
		b.WriteString("\n")
		b.WriteString(m.theme.Error().Render("error: " + m.fatalErr.Error()))
		b.WriteString("\n")
	}
	if m.summary.Canceled {
		b.WriteString("\n")
		b.WriteString(m.theme.Error().Render("canceled"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.theme.Muted().Render("q/esc to cancel"))
	return b.String()
}

func (m *RunProgressModel) styleFor(outcome engine.Outcome) lipgloss.Style {
	switch outcome.Kind {
	case engine.OutcomeRenamed, engine.OutcomeDeleted:
		return m.theme.Success()
	case engine.OutcomeFailed:
		return m.theme.Error()
	default:
		return m.theme.Muted()
	}
}
