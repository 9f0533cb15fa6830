// Package checker audits lists of URLs for HTTP health. Check starts are
// paced by a rate limiter while the checks themselves run concurrently, and
// every submitted URL yields exactly one outcome.
package checker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lukemcguire/statusaudit/obs"
	"github.com/lukemcguire/statusaudit/result"
)

// ErrInvalidConfig is returned by New for configuration values it cannot use.
var ErrInvalidConfig = errors.New("invalid checker configuration")

// Checker runs batches of URL checks through a shared HTTP client.
// It keeps no state between batches.
type Checker struct {
	cfg        Config
	client     *http.Client
	limiter    *Limiter
	log        *zap.Logger
	metrics    *obs.Metrics
	progressCh chan<- CheckEvent
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the logger. Unrecognized check failures are logged at error level.
func WithLogger(l *zap.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics records batch activity into m.
func WithMetrics(m *obs.Metrics) Option {
	return func(c *Checker) {
		c.metrics = m
	}
}

// WithHTTPClient replaces the client built from Config. Its CheckRedirect is
// replaced so redirect hops can be traced.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) {
		if client != nil {
			c.client = client
		}
	}
}

// New creates a Checker with the given configuration.
// The progressCh parameter is optional; pass nil to disable progress events.
func New(cfg Config, progressCh chan<- CheckEvent, opts ...Option) (*Checker, error) {
	limiter, err := NewLimiter(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	if cfg.RequestTimeout < 0 {
		return nil, fmt.Errorf("%w: negative request timeout %s", ErrInvalidConfig, cfg.RequestTimeout)
	}
	if cfg.MaxRedirects < 0 {
		return nil, fmt.Errorf("%w: negative max redirects %d", ErrInvalidConfig, cfg.MaxRedirects)
	}

	defaults := DefaultConfig(cfg.RateLimit)
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = defaults.MaxRedirects
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}

	c := &Checker{
		cfg:        cfg,
		limiter:    limiter,
		log:        zap.NewNop(),
		progressCh: progressCh,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = NewHTTPClient(cfg)
	}

	client := *c.client
	client.CheckRedirect = redirectPolicy(cfg.MaxRedirects)
	c.client = &client
	c.log = c.log.With(zap.String("component", "checker"))

	return c, nil
}

// Config returns the effective configuration, defaults applied.
func (c *Checker) Config() Config {
	return c.cfg
}

// Run checks every URL and returns one row per URL, in submission order.
//
// Starts are admitted one at a time through the rate limiter; admitted
// checks run concurrently and are not limited in number. Run waits for all
// of them. Per-URL failures are recorded in the table, never returned. The
// only error is the context's, when it ends before every URL was admitted.
func (c *Checker) Run(ctx context.Context, urls []string) (*result.Table, error) {
	start := time.Now()

	outcomes := make([]result.Outcome, len(urls))
	seen := newSeenSet(len(urls))

	var (
		group      errgroup.Group
		checked    atomic.Int64
		errored    atomic.Int64
		duplicates int
		admitErr   error
	)

	c.log.Info("starting batch",
		zap.Int("urls", len(urls)),
		zap.Int("rate_limit", c.limiter.Rate()),
	)

	for i, rawURL := range urls {
		if err := c.limiter.Acquire(ctx); err != nil {
			admitErr = fmt.Errorf("rate limiter wait: %w", err)
			break
		}
		c.metrics.Admitted()

		if !seen.addIfNew(rawURL) {
			duplicates++
			c.log.Warn("URL submitted more than once; each submission gets its own row",
				zap.String("url", rawURL),
				zap.Int("index", i),
			)
		}

		group.Go(func() error {
			out := c.Check(ctx, rawURL)
			outcomes[i] = out

			errCount := errored.Load()
			if out.IsError() {
				errCount = errored.Add(1)
			}
			c.emit(ctx, CheckEvent{
				URL:          rawURL,
				StatusCode:   out.StatusCode,
				ErrorKind:    out.ErrorMessage,
				RedirectType: out.RedirectType,
				Checked:      int(checked.Add(1)),
				Errors:       int(errCount),
				Total:        len(urls),
			})
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("wait for checks: %w", err)
	}
	if admitErr != nil {
		c.log.Warn("batch aborted",
			zap.Int64("checked", checked.Load()),
			zap.Int("urls", len(urls)),
			zap.Error(admitErr),
		)
		return nil, admitErr
	}

	table := result.NewTable(outcomes)
	table.Stats.Duplicates = duplicates
	table.Stats.Duration = time.Since(start)

	c.log.Info("batch complete",
		zap.Int("checked", table.Stats.TotalChecked),
		zap.Int("errors", table.Stats.ErrorCount),
		zap.Int("redirects", table.Stats.Redirects),
		zap.Int("duplicates", duplicates),
		zap.Duration("duration", table.Stats.Duration),
	)
	return table, nil
}

// Check checks a single URL without waiting on the rate limiter. A panic
// inside the check is logged and reported as an unknown error.
func (c *Checker) Check(ctx context.Context, rawURL string) (out result.Outcome) {
	start := time.Now()
	c.metrics.Started()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic while checking URL",
				zap.String("url", rawURL),
				zap.Any("panic", r),
				zap.Stack("stacktrace"),
			)
			out = result.Failed(rawURL, result.KindUnknown)
		}
		c.metrics.Finished(out, time.Since(start))
	}()

	return CheckURL(ctx, c.client, rawURL, c.cfg, c.log)
}

func (c *Checker) emit(ctx context.Context, evt CheckEvent) {
	if c.progressCh == nil {
		return
	}
	select {
	case c.progressCh <- evt:
	case <-ctx.Done():
	}
}
