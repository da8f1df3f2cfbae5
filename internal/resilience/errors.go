// Package resilience provides retry with exponential backoff and jitter
// for external service calls, retrying only a closed set of transient
// failure classes.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// FailureClass classifies an upstream failure. Only the transient classes
// are retried; everything else propagates immediately.
type FailureClass string

const (
	FailureRateLimited FailureClass = "rate_limited"
	FailureUnavailable FailureClass = "unavailable"
	FailureDeadline    FailureClass = "deadline_exceeded"
	FailureInternal    FailureClass = "internal_transient"
	FailurePermanent   FailureClass = "permanent"
)

// TransientError wraps an error that is safe to retry.
type TransientError struct {
	Err   error
	Class FailureClass
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %s", e.Class, e.Err.Error())
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as retryable with a failure class.
func NewTransientError(err error, class FailureClass) *TransientError {
	return &TransientError{Err: err, Class: class}
}

// ClassifyHTTPStatus maps an HTTP status code to a failure class.
func ClassifyHTTPStatus(status int) FailureClass {
	switch status {
	case 429:
		return FailureRateLimited
	case 502, 503:
		return FailureUnavailable
	case 408, 504:
		return FailureDeadline
	case 500:
		return FailureInternal
	default:
		return FailurePermanent
	}
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, a network timeout, or a known transient pattern.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// FatalError is the terminal failure of a retried operation: either a
// non-retryable cause or an exhausted retry budget. It carries the
// attempt count and last cause for the audit trail.
type FatalError struct {
	Label    string
	Attempts int
	Cause    error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %s", e.Label, e.Attempts, e.Cause.Error())
}

func (e *FatalError) Unwrap() error {
	return e.Cause
}
