package dlerr

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"syscall"
)

// Kind is the closed set of failure classes a download can surface.
// Every internal failure is normalized to one of these before it crosses
// the Download boundary.
type Kind int

const (
	KindUnknown Kind = iota

	// URL / protocol
	KindInvalidURL
	KindUnsupportedScheme

	// Connection
	KindConnectionFailed
	KindConnectionReset
	KindConnectionTimeout
	KindDNSResolutionFailed
	KindNetworkUnreachable

	// TLS
	KindTLSHandshakeFailed
	KindCertificateError

	// HTTP status derived
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindRequestTimeout
	KindTooManyRequests
	KindClientError
	KindServerError
	KindBadGateway
	KindServiceUnavailable
	KindGatewayTimeout

	// Resume
	KindRangeNotSupported
	KindResumeFileMismatch
	KindInvalidRange

	// File
	KindFileAlreadyExists
	KindFileOpenError
	KindFileWriteError
	KindDiskFull
	KindPermissionDenied

	// Validation
	KindChecksumMismatch
	KindSizeMismatch

	// Control
	KindTooManyRedirects
	KindCancelled
	KindRetriesExhausted
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindInvalidURL:          "invalid-url",
	KindUnsupportedScheme:   "unsupported-scheme",
	KindConnectionFailed:    "connection-failed",
	KindConnectionReset:     "connection-reset",
	KindConnectionTimeout:   "connection-timeout",
	KindDNSResolutionFailed: "dns-resolution-failed",
	KindNetworkUnreachable:  "network-unreachable",
	KindTLSHandshakeFailed:  "tls-handshake-failed",
	KindCertificateError:    "certificate-error",
	KindBadRequest:          "bad-request",
	KindUnauthorized:        "unauthorized",
	KindForbidden:           "forbidden",
	KindNotFound:            "not-found",
	KindRequestTimeout:      "request-timeout",
	KindTooManyRequests:     "too-many-requests",
	KindClientError:         "client-error",
	KindServerError:         "server-error",
	KindBadGateway:          "bad-gateway",
	KindServiceUnavailable:  "service-unavailable",
	KindGatewayTimeout:      "gateway-timeout",
	KindRangeNotSupported:   "range-not-supported",
	KindResumeFileMismatch:  "resume-file-mismatch",
	KindInvalidRange:        "invalid-range",
	KindFileAlreadyExists:   "file-already-exists",
	KindFileOpenError:       "file-open-error",
	KindFileWriteError:      "file-write-error",
	KindDiskFull:            "disk-full",
	KindPermissionDenied:    "permission-denied",
	KindChecksumMismatch:    "checksum-mismatch",
	KindSizeMismatch:        "size-mismatch",
	KindTooManyRedirects:    "too-many-redirects",
	KindCancelled:           "cancelled",
	KindRetriesExhausted:    "retries-exhausted",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is the single error type returned by the download engine.
type Error struct {
	Kind     Kind
	Message  string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from any error, KindUnknown if it is not ours.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether a failure of the given kind is worth another
// attempt. This is the single retry-policy decision point; RetryState only
// tracks how many times and how long to wait.
func IsRetryable(k Kind) bool {
	switch k {
	case KindConnectionFailed, KindConnectionReset, KindConnectionTimeout,
		KindDNSResolutionFailed, KindNetworkUnreachable,
		KindTLSHandshakeFailed,
		KindRequestTimeout, KindTooManyRequests,
		KindServerError, KindBadGateway, KindServiceUnavailable, KindGatewayTimeout:
		return true
	}
	return false
}

// Terminal reports kinds that short-circuit the whole download regardless
// of the remaining retry budget.
func Terminal(k Kind) bool {
	switch k {
	case KindInvalidURL, KindUnsupportedScheme, KindFileAlreadyExists,
		KindTooManyRedirects, KindCancelled:
		return true
	}
	return false
}

// FromStatus maps a non-success HTTP status code to a Kind.
func FromStatus(code int) Kind {
	switch code {
	case http.StatusBadRequest:
		return KindBadRequest
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusRequestTimeout:
		return KindRequestTimeout
	case http.StatusRequestedRangeNotSatisfiable:
		return KindInvalidRange
	case http.StatusTooManyRequests:
		return KindTooManyRequests
	case http.StatusInternalServerError:
		return KindServerError
	case http.StatusBadGateway:
		return KindBadGateway
	case http.StatusServiceUnavailable:
		return KindServiceUnavailable
	case http.StatusGatewayTimeout:
		return KindGatewayTimeout
	}
	switch {
	case code >= 400 && code < 500:
		return KindClientError
	case code >= 500:
		return KindServerError
	}
	return KindClientError
}

// Classify maps transport and filesystem errors into the closed set.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return Classify(urlErr.Err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNSResolutionFailed
	}

	var certInvalid x509.CertificateInvalidError
	var certUnknown x509.UnknownAuthorityError
	var certHost x509.HostnameError
	if errors.As(err, &certInvalid) || errors.As(err, &certUnknown) || errors.As(err, &certHost) {
		return KindCertificateError
	}
	var certVerify *tls.CertificateVerificationError
	if errors.As(err, &certVerify) {
		return KindCertificateError
	}
	var tlsRecord tls.RecordHeaderError
	if errors.As(err, &tlsRecord) {
		return KindTLSHandshakeFailed
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindConnectionTimeout
	}

	switch {
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return KindConnectionReset
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindConnectionFailed
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		return KindNetworkUnreachable
	case errors.Is(err, syscall.ENOSPC):
		return KindDiskFull
	case errors.Is(err, syscall.EACCES), errors.Is(err, os.ErrPermission):
		return KindPermissionDenied
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnectionFailed
	}

	return KindConnectionFailed
}

// ClassifyFileWrite maps a write failure to a Kind, preferring the more
// specific disk-full and permission cases.
func ClassifyFileWrite(err error) Kind {
	switch k := Classify(err); k {
	case KindDiskFull, KindPermissionDenied:
		return k
	}
	return KindFileWriteError
}
