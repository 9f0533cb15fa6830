package checker

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lukemcguire/statusaudit/result"
	"github.com/lukemcguire/statusaudit/urlutil"
)

// Config holds checker configuration.
type Config struct {
	RateLimit          int           // Check starts per second (required, > 0)
	RequestTimeout     time.Duration // Per-request timeout covering the whole redirect chain (default 30s)
	MaxRedirects       int           // Redirect hops followed before giving up (default 10)
	UserAgent          string        // User-Agent header sent with every request
	InsecureSkipVerify bool          // Skip TLS certificate verification
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(rateLimit int) Config {
	return Config{
		RateLimit:      rateLimit,
		RequestTimeout: 30 * time.Second,
		MaxRedirects:   10,
		UserAgent:      "statusaudit/1.0 (+https://github.com/lukemcguire/statusaudit)",
	}
}

// NewHTTPClient builds the client whose connection pool is shared by every
// check in a batch. Redirect handling is installed by the Checker.
func NewHTTPClient(cfg Config) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.RequestTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			MinVersion:         tls.VersionTLS12,
		},
	}
	return &http.Client{Transport: transport}
}

// CheckURL issues one GET for rawURL, following redirects, and classifies the
// outcome. The response body is closed without being read.
//
// The client's CheckRedirect must be redirectPolicy for redirect fields to be
// filled in; clients built by New are. Transport errors that match no known
// kind are logged at error level and reported as result.KindUnknown.
func CheckURL(ctx context.Context, client *http.Client, rawURL string, cfg Config, log *zap.Logger) result.Outcome {
	if log == nil {
		log = zap.NewNop()
	}

	if err := urlutil.Validate(rawURL); err != nil {
		log.Debug("invalid URL", zap.String("url", rawURL), zap.Error(err))
		return result.Failed(rawURL, result.KindInvalidURL)
	}

	reqCtx := ctx
	if cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()
	}
	reqCtx, trace := withRedirectTrace(reqCtx)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return result.Failed(rawURL, result.KindInvalidURL)
	}
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		kind := result.ClassifyError(err)
		if kind == result.KindUnknown {
			log.Error("unrecognized error while checking URL",
				zap.String("url", rawURL),
				zap.Error(err),
				zap.Strings("error_chain", errorChain(err)),
				zap.Stack("stacktrace"),
			)
		} else {
			log.Debug("transport error", zap.String("url", rawURL), zap.String("kind", string(kind)), zap.Error(err))
		}
		return result.Failed(rawURL, kind)
	}
	_ = resp.Body.Close()

	out := result.Outcome{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ResolvedURL: rawURL,
	}
	if resp.Request != nil {
		out.ResolvedURL = resp.Request.URL.String()
	}
	if trace.hops > 0 {
		out.RedirectType = trace.lastStatus
		out.RedirectURL = trace.lastURL
	}
	return out
}

// errorChain lists the dynamic types of err and everything it wraps.
func errorChain(err error) []string {
	var chain []string
	for err != nil {
		chain = append(chain, fmt.Sprintf("%T", err))
		err = errors.Unwrap(err)
	}
	return chain
}
