package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lukemcguire/statusaudit/checker"
	"github.com/lukemcguire/statusaudit/config"
	"github.com/lukemcguire/statusaudit/obs"
	"github.com/lukemcguire/statusaudit/result"
	"github.com/lukemcguire/statusaudit/tui"
	"github.com/lukemcguire/statusaudit/urlutil"
)

const appName = "statusaudit"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// errChecksFailed signals a completed run in which at least one URL was an
// error row. It maps to exit status 1 without an extra message.
var errChecksFailed = errors.New("one or more URLs failed their check")

// NewRootCmd creates the statusaudit command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statusaudit [flags] [url...]",
		Short: "Check the HTTP status of a list of URLs",
		Long: `statusaudit checks every URL it is given with a GET request, following
redirects, and records the final status code, the last redirect hop and
any transport error.

Check starts are limited to --rate-limit per second; checks that have
started run concurrently. Error and redirect rows are written as CSV
reports to --output-dir.

Examples:
  # Check a few URLs
  statusaudit https://example.com/ https://example.com/about

  # Check a list, 10 starts per second, JSON table on stdout
  statusaudit --input urls.txt --rate-limit 10 --quiet --json

  # Read the list from stdin
  cat urls.txt | statusaudit --input -

Settings can also come from a YAML file (--config) or STATUSAUDIT_*
environment variables, e.g. STATUSAUDIT_HTTP_REQUEST_TIMEOUT=10s.`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRootCmd,
	}

	defaults := checker.DefaultConfig(30)

	cmd.Flags().StringP("config", "c", "", "YAML configuration file")
	cmd.Flags().StringP("input", "i", "", "file with one URL per line, or - for stdin")

	// Check behavior
	cmd.Flags().IntP("rate-limit", "r", defaults.RateLimit, "maximum check starts per second")
	cmd.Flags().DurationP("timeout", "t", defaults.RequestTimeout, "timeout for each check, redirects included")
	cmd.Flags().Int("max-redirects", defaults.MaxRedirects, "redirect hops to follow before giving up")
	cmd.Flags().String("user-agent", defaults.UserAgent, "User-Agent header sent with each request")
	cmd.Flags().Bool("insecure", false, "skip TLS certificate verification")

	// Output
	cmd.Flags().StringP("output-dir", "o", "errors", "directory for the error and redirect CSV reports")
	cmd.Flags().Bool("json", false, "write the full result table to stdout as JSON")
	cmd.Flags().Bool("csv", false, "write the full result table to stdout as CSV")
	cmd.Flags().BoolP("quiet", "q", false, "no interactive display; print a plain summary")
	cmd.Flags().String("metrics-file", "", "write Prometheus metrics to this file after the run")

	// Logging
	cmd.Flags().String("log-level", "warn", "console log level (debug, info, warn, error)")
	cmd.Flags().Bool("log-pretty", false, "human-readable console logs instead of JSON")
	cmd.Flags().String("log-dir", "logs", "directory for daily critical-error logs (empty disables)")

	cmd.MarkFlagsMutuallyExclusive("json", "csv")

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		if !errors.Is(err, errChecksFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// runRootCmd executes one audit: load settings, check the URLs, write the
// reports.
func runRootCmd(cmd *cobra.Command, args []string) (err error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	urls, err := collectURLs(args, cfg.Input, cmd.InOrStdin())
	if err != nil {
		return err
	}

	logger, closeLog, err := obs.NewLogger(cfg.LogConfig(appName, version))
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer func() {
		err = errors.Join(err, closeLog())
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	opts := []checker.Option{
		checker.WithLogger(logger),
		checker.WithMetrics(obs.NewMetrics(reg)),
	}

	stdout := cmd.OutOrStdout()
	summaryOut := stdout
	if cfg.Output.JSON || cfg.Output.CSV {
		summaryOut = cmd.ErrOrStderr()
	}

	var table *result.Table
	if cfg.Quiet {
		table, err = runQuiet(ctx, cfg, urls, opts)
		if err == nil {
			result.PrintSummary(summaryOut, table)
		}
	} else {
		table, err = runInteractive(ctx, cmd, cfg, urls, summaryOut, opts)
	}
	if err != nil {
		return err
	}

	switch {
	case cfg.Output.JSON:
		err = result.WriteJSON(stdout, table.Rows)
	case cfg.Output.CSV:
		err = result.WriteCSV(stdout, table.Rows)
	}
	if err != nil {
		return fmt.Errorf("write result table: %w", err)
	}

	paths, err := result.WriteReports(cfg.Output.Dir, table)
	if err != nil {
		return err
	}
	logger.Info("reports written",
		zap.String("errors", paths.Errors),
		zap.String("redirects", paths.Redirects),
	)

	if cfg.MetricsFile != "" {
		if err := obs.WriteTextfile(cfg.MetricsFile, reg); err != nil {
			return err
		}
	}

	if table.Stats.ErrorCount > 0 {
		return errChecksFailed
	}
	return nil
}

// runQuiet checks urls without any terminal UI.
func runQuiet(ctx context.Context, cfg *config.Config, urls []string, opts []checker.Option) (*result.Table, error) {
	c, err := checker.New(cfg.CheckerConfig(), nil, opts...)
	if err != nil {
		return nil, err
	}
	table, err := c.Run(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("check: %w", err)
	}
	return table, nil
}

// runInteractive checks urls behind the Bubble Tea progress display, which
// renders the summary when the batch ends.
func runInteractive(ctx context.Context, cmd *cobra.Command, cfg *config.Config, urls []string, out io.Writer, opts []checker.Option) (*result.Table, error) {
	progressCh := make(chan checker.CheckEvent, 100)
	c, err := checker.New(cfg.CheckerConfig(), progressCh, opts...)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	programOpts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(out)}
	if cfg.Input == "-" {
		// stdin held the URL list, so there is no keyboard to read.
		programOpts = append(programOpts, tea.WithInput(nil))
	} else {
		programOpts = append(programOpts, tea.WithInput(cmd.InOrStdin()))
	}

	model := tui.NewModel(runCtx, cancel, c, urls, progressCh)
	finalModel, err := tea.NewProgram(model, programOpts...).Run()
	if err != nil {
		return nil, fmt.Errorf("terminal UI: %w", err)
	}

	final := finalModel.(tui.Model)
	if err := final.Err(); err != nil {
		return nil, err
	}
	if final.GetTable() == nil {
		return nil, fmt.Errorf("interrupted before the batch finished: %w", context.Canceled)
	}
	return final.GetTable(), nil
}

// collectURLs gathers the URLs to check: positional arguments first, then
// the entries of the input list. Repeats are kept.
func collectURLs(args []string, input string, stdin io.Reader) ([]string, error) {
	urls := append([]string(nil), args...)

	if input != "" {
		var r io.Reader = stdin
		if input != "-" {
			f, err := os.Open(input)
			if err != nil {
				return nil, fmt.Errorf("open URL list: %w", err)
			}
			defer f.Close()
			r = f
		}
		listed, err := urlutil.ReadList(r)
		if err != nil {
			return nil, fmt.Errorf("read URL list %s: %w", input, err)
		}
		urls = append(urls, listed...)
	}

	if len(urls) == 0 {
		return nil, config.ErrNoInput
	}
	return urls, nil
}
