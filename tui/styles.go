package tui

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lukemcguire/statusaudit/result"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	successStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	categoryStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle         = lipgloss.NewStyle().Faint(true)
	urlStyle         = lipgloss.NewStyle()
	statusErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	redirectStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// Status groups shown before the transport error kinds.
const (
	group4xx         = "Client Errors (4xx)"
	group5xx         = "Server Errors (5xx)"
	groupOtherStatus = "Other Status Codes"
)

// groupOrder is the display order for error groups, most actionable first.
var groupOrder = func() []string {
	order := []string{group4xx, group5xx}
	for _, kind := range result.Kinds {
		order = append(order, result.FormatKind(kind))
	}
	return append(order, groupOtherStatus)
}()

// errorGroup returns the heading an error row is listed under.
func errorGroup(row result.Outcome) string {
	switch {
	case row.ErrorMessage != "":
		return result.FormatKind(row.ErrorMessage)
	case row.StatusCode >= 400 && row.StatusCode < 500:
		return group4xx
	case row.StatusCode >= 500:
		return group5xx
	default:
		return groupOtherStatus
	}
}

// statusText renders a status code with its reason phrase, e.g. "404 Not Found".
func statusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return strconv.Itoa(code) + " " + text
	}
	return strconv.Itoa(code)
}

// RenderSummary produces a Lip Gloss styled summary of a batch's results.
func RenderSummary(res *result.Table) string {
	if res == nil {
		return errorStyle.Render("No results available.")
	}

	var builder strings.Builder

	errs := res.Errors()
	if len(errs) == 0 {
		builder.WriteString(successStyle.Render("No errors found!"))
		builder.WriteString("\n")
	} else {
		renderErrors(&builder, errs)
	}

	if redirects := res.Redirects(); len(redirects) > 0 {
		renderRedirects(&builder, redirects)
	}

	builder.WriteString(titleStyle.Render(fmt.Sprintf(
		"Checked %d URLs, found %d errors and %d redirects",
		res.Stats.TotalChecked,
		res.Stats.ErrorCount,
		res.Stats.Redirects,
	)))
	builder.WriteString("\n")
	details := fmt.Sprintf("Finished in %s", res.Stats.Duration.Round(1_000_000)) // round to ms
	if res.Stats.Duplicates > 0 {
		details += fmt.Sprintf(", %d duplicate submissions", res.Stats.Duplicates)
	}
	builder.WriteString(dimStyle.Render(details))
	builder.WriteString("\n")

	return builder.String()
}

func renderErrors(builder *strings.Builder, errs []result.Outcome) {
	grouped := make(map[string][]result.Outcome)
	for _, row := range errs {
		group := errorGroup(row)
		grouped[group] = append(grouped[group], row)
	}

	for _, group := range groupOrder {
		rows, exists := grouped[group]
		if !exists || len(rows) == 0 {
			continue
		}

		builder.WriteString(categoryStyle.Render(fmt.Sprintf("## %s (%d)", group, len(rows))))
		builder.WriteString("\n")

		cells := make([][]string, 0, len(rows))
		for _, row := range rows {
			status := string(row.ErrorMessage)
			if status == "" {
				status = statusText(row.StatusCode)
			}
			cells = append(cells, []string{row.URL, status})
		}

		groupTable := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("URL", "Status").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				if col == 1 { // Status column
					return statusErrorStyle
				}
				return urlStyle
			}).
			Rows(cells...)

		builder.WriteString(groupTable.Render())
		builder.WriteString("\n\n")
	}
}

func renderRedirects(builder *strings.Builder, redirects []result.Outcome) {
	builder.WriteString(categoryStyle.Render(fmt.Sprintf("## Redirects (%d)", len(redirects))))
	builder.WriteString("\n")

	cells := make([][]string, 0, len(redirects))
	for _, row := range redirects {
		cells = append(cells, []string{row.URL, strconv.Itoa(row.RedirectType), row.ResolvedURL})
	}

	redirectTable := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("URL", "Type", "Resolves To").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 {
				return redirectStyle
			}
			return urlStyle
		}).
		Rows(cells...)

	builder.WriteString(redirectTable.Render())
	builder.WriteString("\n\n")
}
