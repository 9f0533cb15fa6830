// Package result holds the per-URL outcomes of a status audit and the table
// they are assembled into, together with its filters and writers.
package result

import "time"

// IndexColumn is the column the table is keyed by.
const IndexColumn = "url"

// Columns is the exact column set of a Table, excluding the index.
var Columns = []string{
	"status_code",
	"error_message",
	"redirect_type",
	"redirect_url",
	"resolved_url",
}

// Outcome is the result of checking a single URL.
//
// ErrorMessage is set if and only if StatusCode is 0, and RedirectURL is set
// if and only if RedirectType is not 0. Absent values are empty strings.
type Outcome struct {
	URL          string    `json:"url"`                     // The URL as it was requested
	StatusCode   int       `json:"status_code"`             // Final HTTP status (0 on transport failure)
	ErrorMessage ErrorKind `json:"error_message,omitempty"` // Transport error kind
	RedirectType int       `json:"redirect_type"`           // Status of the last redirect hop (0 if none)
	RedirectURL  string    `json:"redirect_url,omitempty"`  // URL that answered the last redirect hop
	ResolvedURL  string    `json:"resolved_url,omitempty"`  // Final URL after all redirects
}

// Failed returns the outcome of a check that never completed an HTTP exchange.
func Failed(url string, kind ErrorKind) Outcome {
	if kind == "" {
		kind = KindUnknown
	}
	return Outcome{URL: url, ErrorMessage: kind}
}

// IsError reports whether the outcome counts as an error in reports.
func (o Outcome) IsError() bool {
	return o.StatusCode != 200
}

// IsRedirect reports whether the outcome counts as a redirect in reports.
func (o Outcome) IsRedirect() bool {
	return o.RedirectType > 300
}

// Stats contains aggregate statistics for one batch.
type Stats struct {
	TotalChecked int           // Number of outcomes in the table
	ErrorCount   int           // Rows with status_code != 200
	Redirects    int           // Rows with redirect_type > 300
	Duplicates   int           // Submissions whose URL was probably seen earlier in the batch
	Duration     time.Duration // Wall time of the batch
}

// Table is the complete output of one batch: one row per submitted URL,
// in submission order. Key uniqueness is not enforced.
type Table struct {
	Rows  []Outcome
	Stats Stats
}

// NewTable builds a table over rows and fills in the row-derived stats.
func NewTable(rows []Outcome) *Table {
	if rows == nil {
		rows = []Outcome{}
	}
	t := &Table{Rows: rows}
	t.Stats.TotalChecked = len(rows)
	for _, row := range rows {
		if row.IsError() {
			t.Stats.ErrorCount++
		}
		if row.IsRedirect() {
			t.Stats.Redirects++
		}
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Lookup returns every row keyed by url, in submission order.
func (t *Table) Lookup(url string) []Outcome {
	var rows []Outcome
	for _, row := range t.Rows {
		if row.URL == url {
			rows = append(rows, row)
		}
	}
	return rows
}

// Errors returns the rows whose status_code is not 200.
func (t *Table) Errors() []Outcome {
	return t.filter(Outcome.IsError)
}

// Redirects returns the rows whose redirect_type is greater than 300.
func (t *Table) Redirects() []Outcome {
	return t.filter(Outcome.IsRedirect)
}

func (t *Table) filter(keep func(Outcome) bool) []Outcome {
	rows := []Outcome{}
	for _, row := range t.Rows {
		if keep(row) {
			rows = append(rows, row)
		}
	}
	return rows
}
