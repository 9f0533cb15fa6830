// Package tui provides the Bubble Tea terminal UI for statusaudit,
// displaying live batch progress and a styled summary of results.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lukemcguire/statusaudit/checker"
	"github.com/lukemcguire/statusaudit/result"
)

const maxBarWidth = 60

// Model is the Bubble Tea model for the batch TUI.
type Model struct {
	ctx             context.Context
	cancel          context.CancelFunc
	checkerInstance *checker.Checker
	urls            []string
	spinner         spinner.Model
	bar             progress.Model
	progressCh      <-chan checker.CheckEvent

	checked  int
	errors   int
	current  string
	status   string
	quitting bool
	done     bool
	table    *result.Table
	err      error
	width    int
}

// NewModel creates a TUI model that checks urls with checkerInst and listens
// on the checker's progress channel.
func NewModel(ctx context.Context, cancel context.CancelFunc, checkerInst *checker.Checker, urls []string, progressCh <-chan checker.CheckEvent) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(maxBarWidth))

	return Model{
		ctx:             ctx,
		cancel:          cancel,
		checkerInstance: checkerInst,
		urls:            urls,
		spinner:         spin,
		bar:             bar,
		progressCh:      progressCh,
	}
}

// Init starts the spinner, the batch, and the progress listener concurrently.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startCheck(), waitForProgress(m.progressCh))
}

// startCheck returns a tea.Cmd that runs the batch and sends CheckDoneMsg.
func (m Model) startCheck() tea.Cmd {
	return func() tea.Msg {
		table, err := m.checkerInstance.Run(m.ctx, m.urls)
		if err != nil {
			err = fmt.Errorf("check: %w", err)
		}
		return CheckDoneMsg{Table: table, Err: err}
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-4, 10), maxBarWidth)

	case CheckProgressMsg:
		m.checked = msg.Checked
		m.errors = msg.Errors
		m.current = msg.URL
		m.status = msg.Status
		return m, waitForProgress(m.progressCh)

	case progressClosedMsg:
		return m, nil

	case CheckDoneMsg:
		m.done = true
		m.table = msg.Table
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.done && m.table != nil {
		return RenderSummary(m.table)
	}
	if m.done && m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}

	total := len(m.urls)
	percent := 0.0
	if total > 0 {
		percent = float64(m.checked) / float64(total)
	}

	line := fmt.Sprintf("%s Checking... %d/%d done, %d errors\n%s\n",
		m.spinner.View(), m.checked, total, m.errors,
		m.bar.ViewAs(percent))
	if m.current != "" {
		line += dimStyle.Render(fmt.Sprintf("  %s  %s", m.status, m.current)) + "\n"
	}
	return line
}

// HasErrors reports whether the batch produced any error rows.
func (m Model) HasErrors() bool {
	return m.table != nil && m.table.Stats.ErrorCount > 0
}

// GetTable returns the batch's result table for output formatting.
func (m Model) GetTable() *result.Table {
	return m.table
}

// Err returns the error that ended the batch, if any.
func (m Model) Err() error {
	return m.err
}
