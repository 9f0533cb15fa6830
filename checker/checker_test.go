package checker_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lukemcguire/statusaudit/checker"
	"github.com/lukemcguire/statusaudit/obs"
	"github.com/lukemcguire/statusaudit/result"
)

// roundTripFunc adapts a function to http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// fakeClient answers every request in-process: the status code is taken from
// the path (/200, /404, ...), /panic panics inside the transport.
func fakeClient() *http.Client {
	return &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		code := http.StatusOK
		switch req.URL.Path {
		case "/panic":
			panic("transport exploded")
		case "/404":
			code = http.StatusNotFound
		case "/500":
			code = http.StatusInternalServerError
		}
		return &http.Response{
			StatusCode: code,
			Body:       http.NoBody,
			Header:     make(http.Header),
			Request:    req,
		}, nil
	})}
}

// mustNewChecker creates a checker or fails the test.
func mustNewChecker(t *testing.T, cfg checker.Config, progressCh chan<- checker.CheckEvent, opts ...checker.Option) *checker.Checker {
	t.Helper()
	c, err := checker.New(cfg, progressCh, opts...)
	if err != nil {
		t.Fatalf("checker.New() error: %v", err)
	}
	return c
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     checker.Config
		wantErr error
	}{
		{"zero rate", checker.Config{RateLimit: 0}, checker.ErrInvalidRateLimit},
		{"negative rate", checker.Config{RateLimit: -1}, checker.ErrInvalidRateLimit},
		{"negative timeout", checker.Config{RateLimit: 1, RequestTimeout: -time.Second}, checker.ErrInvalidConfig},
		{"negative redirects", checker.Config{RateLimit: 1, MaxRedirects: -1}, checker.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := checker.New(tt.cfg, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
			if c != nil {
				t.Error("New() returned a checker alongside an error")
			}
		})
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	c := mustNewChecker(t, checker.Config{RateLimit: 7}, nil)

	got := c.Config()
	want := checker.DefaultConfig(7)
	if got.RequestTimeout != want.RequestTimeout {
		t.Errorf("RequestTimeout = %v, want %v", got.RequestTimeout, want.RequestTimeout)
	}
	if got.MaxRedirects != want.MaxRedirects {
		t.Errorf("MaxRedirects = %d, want %d", got.MaxRedirects, want.MaxRedirects)
	}
	if got.UserAgent != want.UserAgent {
		t.Errorf("UserAgent = %q, want %q", got.UserAgent, want.UserAgent)
	}
}

func TestRun_EmptyBatch(t *testing.T) {
	c := mustNewChecker(t, checker.Config{RateLimit: 1}, nil, checker.WithHTTPClient(fakeClient()))

	table, err := c.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if table.Len() != 0 {
		t.Errorf("Len() = %d, want 0", table.Len())
	}
	if table.Stats.ErrorCount != 0 || table.Stats.Redirects != 0 {
		t.Errorf("Stats = %+v, want zero counts", table.Stats)
	}
}

// TestRun_OneRowPerSubmission verifies that every submitted URL, repeats
// and invalid entries included, produces exactly one row in input order.
func TestRun_OneRowPerSubmission(t *testing.T) {
	c := mustNewChecker(t, checker.Config{RateLimit: 200}, nil, checker.WithHTTPClient(fakeClient()))

	urls := []string{
		"https://example.com/200",
		"https://example.com/404",
		"https://example.com/200",
		"mailto:someone@example.com",
		"https://example.com/500",
	}

	table, err := c.Run(context.Background(), urls)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if table.Len() != len(urls) {
		t.Fatalf("Len() = %d, want %d", table.Len(), len(urls))
	}
	for i, row := range table.Rows {
		if row.URL != urls[i] {
			t.Errorf("row %d URL = %q, want %q", i, row.URL, urls[i])
		}
	}

	wantStatus := []int{200, 404, 200, 0, 500}
	for i, row := range table.Rows {
		if row.StatusCode != wantStatus[i] {
			t.Errorf("row %d StatusCode = %d, want %d", i, row.StatusCode, wantStatus[i])
		}
	}
	if table.Rows[3].ErrorMessage != result.KindInvalidURL {
		t.Errorf("mailto row ErrorMessage = %q, want %q", table.Rows[3].ErrorMessage, result.KindInvalidURL)
	}

	if table.Stats.TotalChecked != 5 {
		t.Errorf("TotalChecked = %d, want 5", table.Stats.TotalChecked)
	}
	if table.Stats.ErrorCount != 3 {
		t.Errorf("ErrorCount = %d, want 3", table.Stats.ErrorCount)
	}
	if table.Stats.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", table.Stats.Duplicates)
	}
	if got := table.Lookup("https://example.com/200"); len(got) != 2 {
		t.Errorf("Lookup() of the repeated URL returned %d rows, want 2", len(got))
	}
}

func TestRun_PanicIsolated(t *testing.T) {
	c := mustNewChecker(t, checker.Config{RateLimit: 200}, nil, checker.WithHTTPClient(fakeClient()))

	urls := []string{
		"https://example.com/200",
		"https://example.com/panic",
		"https://example.com/404",
	}
	table, err := c.Run(context.Background(), urls)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", table.Len())
	}

	panicked := table.Rows[1]
	if panicked.ErrorMessage != result.KindUnknown || panicked.StatusCode != 0 {
		t.Errorf("panicking check = %+v, want unknown error with no status", panicked)
	}
	if table.Rows[0].StatusCode != 200 || table.Rows[2].StatusCode != 404 {
		t.Errorf("neighbouring checks were affected: %+v, %+v", table.Rows[0], table.Rows[2])
	}
}

func TestRun_ProgressEvents(t *testing.T) {
	urls := []string{
		"https://example.com/200",
		"https://example.com/404",
		"https://example.com/200?x=1",
		"https://example.com/500",
	}
	progressCh := make(chan checker.CheckEvent, len(urls))
	c := mustNewChecker(t, checker.Config{RateLimit: 200}, progressCh, checker.WithHTTPClient(fakeClient()))

	if _, err := c.Run(context.Background(), urls); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	close(progressCh)

	var events []checker.CheckEvent
	for evt := range progressCh {
		events = append(events, evt)
	}
	if len(events) != len(urls) {
		t.Fatalf("got %d events, want %d", len(events), len(urls))
	}

	var checked []int
	maxErrors := 0
	for _, evt := range events {
		if evt.Total != len(urls) {
			t.Errorf("event Total = %d, want %d", evt.Total, len(urls))
		}
		checked = append(checked, evt.Checked)
		if evt.Errors > maxErrors {
			maxErrors = evt.Errors
		}
	}
	sort.Ints(checked)
	for i, n := range checked {
		if n != i+1 {
			t.Errorf("Checked counters = %v, want 1..%d", checked, len(urls))
			break
		}
	}
	if maxErrors != 2 {
		t.Errorf("final error count = %d, want 2", maxErrors)
	}
}

func TestRun_Deterministic(t *testing.T) {
	urls := []string{
		"https://example.com/404",
		"https://example.com/200",
		"://broken",
		"https://example.com/500",
	}
	c := mustNewChecker(t, checker.Config{RateLimit: 500}, nil, checker.WithHTTPClient(fakeClient()))

	first, err := c.Run(context.Background(), urls)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Run(context.Background(), urls)
	if err != nil {
		t.Fatal(err)
	}

	for i := range urls {
		if first.Rows[i] != second.Rows[i] {
			t.Errorf("row %d differs between runs: %+v vs %+v", i, first.Rows[i], second.Rows[i])
		}
	}
}

// TestRun_RateCeiling verifies that check starts, as seen by the server,
// never exceed the rate limit in any one-second window.
func TestRun_RateCeiling(t *testing.T) {
	const rps = 5

	var (
		mu     sync.Mutex
		starts []time.Time
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	urls := make([]string, 2*rps+1)
	for i := range urls {
		urls[i] = ts.URL + "/"
	}

	c := mustNewChecker(t, checker.Config{RateLimit: rps, RequestTimeout: 5 * time.Second}, nil)

	begin := time.Now()
	table, err := c.Run(context.Background(), urls)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	elapsed := time.Since(begin)

	if table.Stats.ErrorCount != 0 {
		t.Errorf("ErrorCount = %d, want 0", table.Stats.ErrorCount)
	}
	if minimum := 2 * time.Second; elapsed < minimum-20*time.Millisecond {
		t.Errorf("%d checks at %d/s finished in %v, want at least %v", len(urls), rps, elapsed, minimum)
	}

	mu.Lock()
	defer mu.Unlock()
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	if len(starts) != len(urls) {
		t.Fatalf("server saw %d requests, want %d", len(starts), len(urls))
	}
	// Requests reach the server a little after admission, so allow for
	// uneven network delay between two of them.
	for i := 0; i+rps < len(starts); i++ {
		if gap := starts[i+rps].Sub(starts[i]); gap < time.Second-50*time.Millisecond {
			t.Errorf("requests %d and %d arrived %v apart, want at least 1s", i, i+rps, gap)
		}
	}
}

// TestRun_ChecksOverlap verifies that admitted checks run concurrently: every
// handler waits for all of its siblings, which only works if none of them
// waits for another to finish first.
func TestRun_ChecksOverlap(t *testing.T) {
	const n = 5

	var (
		mu      sync.Mutex
		arrived int
	)
	all := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrived++
		if arrived == n {
			close(all)
		}
		mu.Unlock()

		select {
		case <-all:
			w.WriteHeader(http.StatusOK)
		case <-time.After(3 * time.Second):
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer ts.Close()

	urls := make([]string, n)
	for i := range urls {
		urls[i] = ts.URL + "/"
	}

	c := mustNewChecker(t, checker.Config{RateLimit: 100, RequestTimeout: 10 * time.Second}, nil)
	table, err := c.Run(context.Background(), urls)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	for i, row := range table.Rows {
		if row.StatusCode != http.StatusOK {
			t.Errorf("row %d StatusCode = %d, want 200 (checks did not overlap)", i, row.StatusCode)
		}
	}
}

func TestRun_Cancellation(t *testing.T) {
	c := mustNewChecker(t, checker.Config{RateLimit: 1}, nil, checker.WithHTTPClient(fakeClient()))

	urls := make([]string, 5)
	for i := range urls {
		urls[i] = "https://example.com/200"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	var runErr error
	go func() {
		_, runErr = c.Run(ctx, urls)
		close(done)
	}()

	select {
	case <-done:
		if !errors.Is(runErr, context.DeadlineExceeded) {
			t.Errorf("Run() error = %v, want context.DeadlineExceeded", runErr)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after the context expired")
	}
}

func TestRun_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := mustNewChecker(t, checker.Config{RateLimit: 200}, nil,
		checker.WithHTTPClient(fakeClient()),
		checker.WithMetrics(obs.NewMetrics(reg)))

	urls := []string{
		"https://example.com/200",
		"https://example.com/404",
		"bad url",
	}
	if _, err := c.Run(context.Background(), urls); err != nil {
		t.Fatal(err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	totals := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				totals[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				totals[mf.GetName()] += m.GetGauge().GetValue()
			}
		}
	}

	if got := totals["statusaudit_admissions_total"]; got != 3 {
		t.Errorf("admissions = %v, want 3", got)
	}
	if got := totals["statusaudit_checks_total"]; got != 3 {
		t.Errorf("checks = %v, want 3", got)
	}
	if got := totals["statusaudit_transport_errors_total"]; got != 1 {
		t.Errorf("transport errors = %v, want 1", got)
	}
	if got := totals["statusaudit_checks_in_flight"]; got != 0 {
		t.Errorf("in flight after Run = %v, want 0", got)
	}
}

func TestCheck_MetricsOutsideRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := mustNewChecker(t, checker.Config{RateLimit: 200}, nil,
		checker.WithHTTPClient(fakeClient()),
		checker.WithMetrics(obs.NewMetrics(reg)))

	c.Check(context.Background(), "https://example.com/200")
	c.Check(context.Background(), "https://example.com/panic")

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		switch mf.GetName() {
		case "statusaudit_checks_in_flight":
			if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 0 {
				t.Errorf("in flight after Check = %v, want 0", got)
			}
		case "statusaudit_admissions_total":
			if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 0 {
				t.Errorf("admissions after Check = %v, want 0", got)
			}
		}
	}
}

func TestRun_RedirectRowsFromServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := mustNewChecker(t, checker.Config{RateLimit: 100, RequestTimeout: 5 * time.Second}, nil)
	table, err := c.Run(context.Background(), []string{ts.URL + "/old", ts.URL + "/new"})
	if err != nil {
		t.Fatal(err)
	}

	redirects := table.Redirects()
	if len(redirects) != 1 {
		t.Fatalf("Redirects() = %v, want one row", redirects)
	}
	if !strings.HasSuffix(redirects[0].URL, "/old") || redirects[0].RedirectType != 301 {
		t.Errorf("redirect row = %+v", redirects[0])
	}
	if table.Stats.Redirects != 1 {
		t.Errorf("Stats.Redirects = %d, want 1", table.Stats.Redirects)
	}
}
