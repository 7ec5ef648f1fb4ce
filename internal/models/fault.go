package models

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a failure for retry decisions and failure records.
type ErrorKind string

const (
	// Fatal before the API is ever reached.
	KindInvalidInput ErrorKind = "invalid_input" // missing file, bad extension
	KindUnsplittable ErrorKind = "unsplittable"  // corrupt or undecodable media

	// Fatal from the API: will not self-resolve.
	KindAuth           ErrorKind = "auth"
	KindInvalidRequest ErrorKind = "invalid_request"

	// Retryable with short backoff.
	KindRateLimited ErrorKind = "rate_limited"
	KindServer      ErrorKind = "server"
	KindNetwork     ErrorKind = "network"

	// Retryable only after a long cooldown; quota resets on a slow cycle.
	KindQuotaExceeded ErrorKind = "quota_exceeded"

	KindExhausted ErrorKind = "retries_exhausted"
	KindCanceled  ErrorKind = "canceled"
	KindInternal  ErrorKind = "internal"
)

// Retryable reports whether another attempt can succeed.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRateLimited, KindServer, KindNetwork, KindQuotaExceeded:
		return true
	default:
		return false
	}
}

// Quota reports whether the long cooldown schedule applies.
func (k ErrorKind) Quota() bool {
	return k == KindQuotaExceeded
}

// Fault is a classified error. Everything that crosses a component boundary
// in this tool is either a *Fault or wraps one.
type Fault struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Fault) Unwrap() error { return f.Err }

// NewFault builds a classified error without a cause.
func NewFault(kind ErrorKind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapFault classifies an underlying error.
func WrapFault(kind ErrorKind, err error, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf maps any error to its classification. Derived from error types and
// sentinels only, never from message text. A per-call deadline counts as a
// network failure so a hung call feeds back into the retry schedule;
// explicit cancellation does not.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return KindNetwork
	}
	return KindInternal
}

// Message extracts the classified message of err, falling back to Error().
func Message(err error) string {
	var f *Fault
	if errors.As(err, &f) {
		if f.Err != nil {
			return fmt.Sprintf("%s: %v", f.Message, f.Err)
		}
		return f.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
