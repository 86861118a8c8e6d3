package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// ErrorKind classifies extraction failures by how the orchestrator must react to them.
type ErrorKind int

const (
	// KindPermanent covers auth failures, malformed requests, missing files. Never retried.
	KindPermanent ErrorKind = iota
	// KindTransport covers network errors and timeouts reaching the remote service.
	KindTransport
	// KindRateLimited is an explicit backpressure signal from the remote service.
	KindRateLimited
	// KindInvalidConfig is rejected before any work is scheduled.
	KindInvalidConfig
	// KindRunAborted is an internal scheduling fault; fatal to the whole run.
	KindRunAborted
	// KindCanceled means the run context was cancelled while the call was pending.
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermanent:
		return "permanent"
	case KindTransport:
		return "transport"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidConfig:
		return "invalid_config"
	case KindRunAborted:
		return "run_aborted"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrTransport     = errors.New("transport error")
	ErrRateLimited   = errors.New("rate limited")
	ErrPermanent     = errors.New("permanent error")
	ErrRunAborted    = errors.New("run aborted")
)

// ExtractError carries the classified kind of a failed extraction call.
//
// RetryAfter: wait suggested by the remote service (0 = none).
// Status:     upstream HTTP status when known.
type ExtractError struct {
	Kind       ErrorKind
	RetryAfter time.Duration
	Status     int
	Err        error
}

func (e *ExtractError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Is lets errors.Is match an ExtractError against the kind sentinels.
func (e *ExtractError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrPermanent:
		return e.Kind == KindPermanent
	case ErrInvalidConfig:
		return e.Kind == KindInvalidConfig
	case ErrRunAborted:
		return e.Kind == KindRunAborted
	}
	return false
}

// NewRateLimited wraps err as a rate-limit failure with an optional suggested wait.
func NewRateLimited(err error, retryAfter time.Duration) *ExtractError {
	return &ExtractError{Kind: KindRateLimited, RetryAfter: retryAfter, Err: err}
}

// NewTransport wraps err as a retryable transport failure.
func NewTransport(err error) *ExtractError {
	return &ExtractError{Kind: KindTransport, Err: err}
}

// NewPermanent wraps err as a failure that must not be retried.
func NewPermanent(err error) *ExtractError {
	return &ExtractError{Kind: KindPermanent, Err: err}
}

// KindOf classifies err. Unknown errors are permanent.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindPermanent
	}
	var xe *ExtractError
	if errors.As(err, &xe) {
		return xe.Kind
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, ErrRunAborted):
		return KindRunAborted
	case errors.Is(err, ErrInvalidConfig):
		return KindInvalidConfig
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrTransport), errors.Is(err, io.ErrUnexpectedEOF):
		return KindTransport
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return KindTransport
	}
	return KindPermanent
}

// RetryAfterOf returns the wait suggested by the remote service, if any.
func RetryAfterOf(err error) time.Duration {
	var xe *ExtractError
	if errors.As(err, &xe) {
		return xe.RetryAfter
	}
	return 0
}
