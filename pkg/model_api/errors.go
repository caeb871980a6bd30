package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// RemoteAPIError means the inference service answered with an error status.
type RemoteAPIError struct {
	Provider   string
	StatusCode int
	Message    string
	Body       string
	RetryAfter time.Duration
}

func (e *RemoteAPIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.TrimSpace(e.Body)
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, msg)
}

// IsRateLimited reports whether the failure looks like throttling.
func (e *RemoteAPIError) IsRateLimited() bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if e.StatusCode == http.StatusForbidden {
		return containsRateLimitPhrases(e.Message + " " + e.Body)
	}
	return false
}

func containsRateLimitPhrases(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "rate limit") ||
		strings.Contains(s, "requests per minute") ||
		strings.Contains(s, "rate exceeded") ||
		strings.Contains(s, "too many requests") ||
		strings.Contains(s, "insufficient_quota") ||
		(strings.Contains(s, "quota") && strings.Contains(s, "exceeded"))
}

// TransportError is a network-level failure: connection refused, DNS, timeout or cancellation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the call ran out of time.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// UnexpectedError covers malformed responses and anything else unclassified.
type UnexpectedError struct {
	Reason string
	Err    error
}

func (e *UnexpectedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unexpected failure: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("unexpected failure: %s", e.Reason)
}

func (e *UnexpectedError) Unwrap() error { return e.Err }

// ValidationError is a caller error detected before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Class names the failure category of err, for logs and HTTP status mapping.
func Class(err error) string {
	var (
		remote     *RemoteAPIError
		transport  *TransportError
		validation *ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &remote):
		return "remote_api"
	case errors.As(err, &transport):
		return "transport"
	default:
		return "unexpected"
	}
}

// classifyTransport wraps a failed round trip. Context expiry counts as transport.
func classifyTransport(op string, err error, ctx context.Context) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %v", ctxErr, err)
	}
	return &TransportError{Op: op, Err: err}
}
