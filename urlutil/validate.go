// Package urlutil validates and reads the URLs submitted for checking.
package urlutil

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// hostProfile maps hosts the way a lookup would but keeps the hostnames
// resolvers accept in practice: underscores and "--" in positions 3-4
// pass. Only hosts that cannot be encoded at all are rejected.
var hostProfile = idna.New(
	idna.MapForLookup(),
	idna.StrictDomainName(false),
	idna.CheckHyphens(false),
)

// Validate reports whether rawURL can be requested: it must parse, use the
// http or https scheme, and carry a host that is an IP address or a name
// that can be encoded for lookup.
//
// The URL is never rewritten; outcomes stay keyed by the string as submitted.
func Validate(rawURL string) error {
	if rawURL == "" {
		return errors.New("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse URL %q: %w", rawURL, err)
	}

	if !IsHTTPScheme(rawURL) {
		return fmt.Errorf("URL %q must use http or https", rawURL)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("URL %q has no host", rawURL)
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	if _, err := hostProfile.ToASCII(host); err != nil {
		return fmt.Errorf("URL %q has invalid host: %w", rawURL, err)
	}
	return nil
}

// IsHTTPScheme returns true if the URL has an http or https scheme.
// Returns false for empty strings, non-HTTP schemes, or unparseable URLs.
func IsHTTPScheme(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	scheme := strings.ToLower(parsed.Scheme)
	return scheme == "http" || scheme == "https"
}
