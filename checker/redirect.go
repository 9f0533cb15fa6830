package checker

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lukemcguire/statusaudit/result"
)

// redirectTrace remembers the last redirect hop of one request's chain.
// Hops are recorded by the client's CheckRedirect, which runs on the
// goroutine calling Do, so no locking is needed.
type redirectTrace struct {
	hops       int
	lastStatus int
	lastURL    string
}

type traceKey struct{}

func withRedirectTrace(ctx context.Context) (context.Context, *redirectTrace) {
	trace := &redirectTrace{}
	return context.WithValue(ctx, traceKey{}, trace), trace
}

func (t *redirectTrace) record(status int, url string) {
	t.hops++
	t.lastStatus = status
	t.lastURL = url
}

// redirectPolicy returns a CheckRedirect function that records each hop into
// the request's redirectTrace and gives up after maxRedirects hops.
func redirectPolicy(maxRedirects int) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		// req.Response is the 3xx that caused this redirect; the last
		// entry of via is the request that received it.
		if trace, ok := req.Context().Value(traceKey{}).(*redirectTrace); ok && req.Response != nil {
			trace.record(req.Response.StatusCode, via[len(via)-1].URL.String())
		}
		if len(via) > maxRedirects {
			return fmt.Errorf("stopped after %d redirects: %w", maxRedirects, result.ErrTooManyRedirects)
		}
		return nil
	}
}
