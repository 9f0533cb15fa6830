package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/statusaudit/checker"
	"github.com/lukemcguire/statusaudit/result"
)

// CheckProgressMsg reports progress for a single checked URL.
type CheckProgressMsg struct {
	Checked int
	Errors  int
	Total   int
	URL     string
	Status  string
}

// CheckDoneMsg signals the batch has completed.
type CheckDoneMsg struct {
	Table *result.Table
	Err   error
}

// progressClosedMsg is sent once the progress channel is closed. The table
// itself arrives separately in CheckDoneMsg.
type progressClosedMsg struct{}

// waitForProgress returns a tea.Cmd that reads one event from the progress
// channel.
func waitForProgress(ch <-chan checker.CheckEvent) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return progressClosedMsg{}
		}
		return CheckProgressMsg{
			Checked: evt.Checked,
			Errors:  evt.Errors,
			Total:   evt.Total,
			URL:     evt.URL,
			Status:  eventStatus(evt),
		}
	}
}

// eventStatus renders an event's outcome as a short status string.
func eventStatus(evt checker.CheckEvent) string {
	switch {
	case evt.ErrorKind != "":
		return string(evt.ErrorKind)
	case evt.RedirectType > 300:
		return statusText(evt.StatusCode) + " via " + statusText(evt.RedirectType)
	default:
		return statusText(evt.StatusCode)
	}
}
