package result

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// ErrorKind is the classification of a transport-layer failure. It is the
// value stored in an Outcome's error_message column.
type ErrorKind string

const (
	KindTimeout           ErrorKind = "timeout"
	KindDNSFailure        ErrorKind = "dns_failure"
	KindConnectionRefused ErrorKind = "connection_refused"
	KindConnectionReset   ErrorKind = "connection_reset"
	KindConnectionError   ErrorKind = "connection_error"
	KindTLSFailure        ErrorKind = "tls_failure"
	KindProtocolError     ErrorKind = "protocol_error"
	KindTooManyRedirects  ErrorKind = "too_many_redirects"
	KindInvalidURL        ErrorKind = "invalid_url"
	KindCanceled          ErrorKind = "canceled"
	KindUnknown           ErrorKind = "unknown"
)

// Kinds lists every error kind, most actionable first.
var Kinds = []ErrorKind{
	KindDNSFailure,
	KindConnectionRefused,
	KindTLSFailure,
	KindTimeout,
	KindConnectionReset,
	KindConnectionError,
	KindProtocolError,
	KindTooManyRedirects,
	KindInvalidURL,
	KindCanceled,
	KindUnknown,
}

// ErrTooManyRedirects is returned by a redirect policy that gave up on a chain.
var ErrTooManyRedirects = errors.New("too many redirects")

var protocolPatterns = []string{
	"malformed HTTP",
	"malformed MIME",
	"invalid header",
	"unexpected EOF reading trailer",
}

var invalidURLPatterns = []string{
	"unsupported protocol scheme",
	"no Host in request URL",
	"invalid URL",
}

// ClassifyError maps a transport error to its ErrorKind. Errors that match no
// known kind are KindUnknown; callers treat those as unexpected.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrTooManyRedirects) {
		return KindTooManyRedirects
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNSFailure
	}

	if isTLSError(err) {
		return KindTLSFailure
	}

	if errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(err.Error(), "connection refused") {
		return KindConnectionRefused
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindConnectionReset
	}

	msg := err.Error()
	for _, pattern := range protocolPatterns {
		if strings.Contains(msg, pattern) {
			return KindProtocolError
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op == "parse" {
		return KindInvalidURL
	}
	for _, pattern := range invalidURLPatterns {
		if strings.Contains(msg, pattern) {
			return KindInvalidURL
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnectionError
	}

	return KindUnknown
}

func isTLSError(err error) bool {
	var recordErr tls.RecordHeaderError
	var verifyErr *tls.CertificateVerificationError
	var alertErr tls.AlertError
	var authorityErr x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError

	return errors.As(err, &recordErr) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &authorityErr) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr)
}

// FormatKind returns a human-readable label for an error kind.
func FormatKind(kind ErrorKind) string {
	switch kind {
	case KindTimeout:
		return "Timeouts"
	case KindDNSFailure:
		return "DNS Failures"
	case KindConnectionRefused:
		return "Connection Refused"
	case KindConnectionReset:
		return "Connection Reset"
	case KindConnectionError:
		return "Connection Errors"
	case KindTLSFailure:
		return "TLS Failures"
	case KindProtocolError:
		return "Protocol Errors"
	case KindTooManyRedirects:
		return "Redirect Loops"
	case KindInvalidURL:
		return "Invalid URLs"
	case KindCanceled:
		return "Cancelled"
	default:
		return "Other Errors"
	}
}
