package dlerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		code int
		want Kind
	}{
		{400, KindBadRequest},
		{401, KindUnauthorized},
		{403, KindForbidden},
		{404, KindNotFound},
		{408, KindRequestTimeout},
		{416, KindInvalidRange},
		{429, KindTooManyRequests},
		{500, KindServerError},
		{502, KindBadGateway},
		{503, KindServiceUnavailable},
		{504, KindGatewayTimeout},
		{418, KindClientError},
		{507, KindServerError},
	}
	for _, tt := range tests {
		if got := FromStatus(tt.code); got != tt.want {
			t.Errorf("FromStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := []Kind{
		KindConnectionFailed, KindConnectionReset, KindConnectionTimeout,
		KindDNSResolutionFailed, KindTLSHandshakeFailed,
		KindRequestTimeout, KindTooManyRequests,
		KindServerError, KindServiceUnavailable, KindGatewayTimeout,
	}
	for _, k := range retryable {
		if !IsRetryable(k) {
			t.Errorf("IsRetryable(%v) = false, want true", k)
		}
	}
	permanent := []Kind{
		KindNotFound, KindForbidden, KindUnauthorized, KindBadRequest,
		KindInvalidURL, KindUnsupportedScheme, KindCertificateError,
		KindChecksumMismatch, KindSizeMismatch, KindFileAlreadyExists,
		KindTooManyRedirects, KindCancelled, KindDiskFull,
	}
	for _, k := range permanent {
		if IsRetryable(k) {
			t.Errorf("IsRetryable(%v) = true, want false", k)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, k := range []Kind{KindInvalidURL, KindUnsupportedScheme, KindFileAlreadyExists, KindTooManyRedirects, KindCancelled} {
		if !Terminal(k) {
			t.Errorf("Terminal(%v) = false, want true", k)
		}
	}
	if Terminal(KindNotFound) {
		t.Error("Terminal(KindNotFound) = true, want false")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"context cancelled", context.Canceled, KindCancelled},
		{"deadline exceeded", context.DeadlineExceeded, KindCancelled},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "nope.invalid"}, KindDNSResolutionFailed},
		{"conn reset", syscall.ECONNRESET, KindConnectionReset},
		{"broken pipe", syscall.EPIPE, KindConnectionReset},
		{"conn refused", syscall.ECONNREFUSED, KindConnectionFailed},
		{"net unreachable", syscall.ENETUNREACH, KindNetworkUnreachable},
		{"disk full", syscall.ENOSPC, KindDiskFull},
		{"permission", syscall.EACCES, KindPermissionDenied},
		{"url error unwraps", &url.Error{Op: "Get", URL: "http://x", Err: context.Canceled}, KindCancelled},
		{"wrapped own error", fmt.Errorf("outer: %w", New(KindNotFound, "gone")), KindNotFound},
		{"opaque", errors.New("something odd"), KindConnectionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyFileWrite(t *testing.T) {
	if got := ClassifyFileWrite(syscall.ENOSPC); got != KindDiskFull {
		t.Errorf("ClassifyFileWrite(ENOSPC) = %v, want %v", got, KindDiskFull)
	}
	if got := ClassifyFileWrite(errors.New("short write")); got != KindFileWriteError {
		t.Errorf("ClassifyFileWrite(other) = %v, want %v", got, KindFileWriteError)
	}
}

func TestErrorFormatting(t *testing.T) {
	inner := errors.New("boom")
	e := Wrap(KindServerError, inner, "server returned status %d", 500)
	if !errors.Is(e, inner) {
		t.Error("wrapped error should unwrap to inner")
	}
	if KindOf(e) != KindServerError {
		t.Errorf("KindOf = %v, want %v", KindOf(e), KindServerError)
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("KindOf(plain) should be KindUnknown")
	}
	want := "server-error: server returned status 500: boom"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}
