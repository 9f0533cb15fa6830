package result

import (
	"fmt"
	"io"
)

// PrintSummary writes error and redirect details and a summary line to w.
func PrintSummary(w io.Writer, t *Table) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	errs := t.Errors()
	if len(errs) == 0 {
		writef("No errors found!\n")
	} else {
		writef("Errors:\n")
		for i, row := range errs {
			writef("  URL: %s\n", row.URL)
			if row.ErrorMessage != "" {
				writef("  Error: %s\n", row.ErrorMessage)
			} else {
				writef("  Status: %d\n", row.StatusCode)
			}
			if i < len(errs)-1 {
				writef("\n")
			}
		}
	}

	redirects := t.Redirects()
	if len(redirects) > 0 {
		writef("\nRedirects:\n")
		for i, row := range redirects {
			writef("  URL: %s\n", row.URL)
			writef("  Redirect: %d from %s\n", row.RedirectType, row.RedirectURL)
			writef("  Resolved: %s\n", row.ResolvedURL)
			if i < len(redirects)-1 {
				writef("\n")
			}
		}
	}

	writef("Checked %d URLs, found %d errors and %d redirects\n",
		t.Stats.TotalChecked, t.Stats.ErrorCount, t.Stats.Redirects)
}
