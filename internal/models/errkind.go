package models

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrorKind classifies a failure for retry and reporting decisions
type ErrorKind string

const (
	ErrTransientNetwork      ErrorKind = "transient_network"
	ErrRateLimited           ErrorKind = "rate_limited"
	ErrChallengeUnresolved   ErrorKind = "challenge_unresolved"
	ErrLoginRequired         ErrorKind = "login_required"
	ErrEngineProtocolChanged ErrorKind = "engine_protocol_changed"
	ErrBadRequest            ErrorKind = "bad_request"
	ErrInternal              ErrorKind = "internal"
)

// Retryable reports whether a failure of this kind may be retried with backoff
func (k ErrorKind) Retryable() bool {
	return k == ErrTransientNetwork
}

// ClassifyError maps an error and optional HTTP status into an ErrorKind.
// Unknown errors are treated as internal.
func ClassifyError(err error, statusCode int) ErrorKind {
	if statusCode == 429 {
		return ErrRateLimited
	}
	if statusCode >= 500 || statusCode == 408 {
		return ErrTransientNetwork
	}
	if statusCode >= 400 && statusCode < 500 {
		return ErrBadRequest
	}
	if err == nil {
		return ErrInternal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTransientNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrTransientNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrTransientNetwork
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"), strings.Contains(msg, "eof"):
		return ErrTransientNetwork
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"):
		return ErrRateLimited
	}
	return ErrInternal
}
