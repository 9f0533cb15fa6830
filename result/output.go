package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Report file names written by WriteReports.
const (
	ErrorsFile    = "latest-errors.csv"
	RedirectsFile = "latest-redirects.csv"
)

// WriteJSON writes the outcomes as a formatted JSON array to the writer.
func WriteJSON(w io.Writer, rows []Outcome) error {
	if rows == nil {
		rows = []Outcome{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

// WriteCSV writes the outcomes as CSV to the writer.
// Always includes a header row, even if there are no rows.
// Column order: url, status_code, error_message, redirect_type, redirect_url, resolved_url
func WriteCSV(w io.Writer, rows []Outcome) error {
	cw := csv.NewWriter(w)

	header := append([]string{IndexColumn}, Columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.URL,
			strconv.Itoa(row.StatusCode),
			string(row.ErrorMessage),
			strconv.Itoa(row.RedirectType),
			row.RedirectURL,
			row.ResolvedURL,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record for %s: %w", row.URL, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}

// ReportPaths names the files written by WriteReports.
type ReportPaths struct {
	Errors    string
	Redirects string
}

// WriteReports writes the error and redirect subsets of the table to
// dir/latest-errors.csv and dir/latest-redirects.csv, replacing any previous
// run's files. The directory is created if it does not exist.
func WriteReports(dir string, t *Table) (ReportPaths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ReportPaths{}, fmt.Errorf("create report directory %s: %w", dir, err)
	}

	paths := ReportPaths{
		Errors:    filepath.Join(dir, ErrorsFile),
		Redirects: filepath.Join(dir, RedirectsFile),
	}
	if err := writeCSVFile(paths.Errors, t.Errors()); err != nil {
		return ReportPaths{}, err
	}
	if err := writeCSVFile(paths.Redirects, t.Redirects()); err != nil {
		return ReportPaths{}, err
	}
	return paths, nil
}

func writeCSVFile(path string, rows []Outcome) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	if err := WriteCSV(file, rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
