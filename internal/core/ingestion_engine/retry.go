package ingestion_engine

import (
	"time"

	"github.com/markdave123-py/pagetext/internal/core"
)

// RetryDecision tells the orchestrator whether to call the extractor again and how long to wait first.
type RetryDecision struct {
	Retry bool
	Wait  time.Duration
}

// RetryPolicy decides, from a failed call and the attempts spent so far, whether to try again.
// Implementations must be pure.
type RetryPolicy interface {
	ShouldRetry(err error, attemptsUsed int) RetryDecision
}

// BackoffPolicy retries rate-limited and transport failures only.
//
// MaxAttempts:   total calls allowed per page range, first call included.
// RateLimitWait: wait after a rate-limit error that carries no server hint.
// TransportWait: first wait after a transport error; doubles on each further attempt.
// MaxWait:       upper bound for any single wait (0 = unbounded).
type BackoffPolicy struct {
	MaxAttempts   int
	RateLimitWait time.Duration
	TransportWait time.Duration
	MaxWait       time.Duration
}

// DefaultRetryPolicy allows three retries after the first call.
func DefaultRetryPolicy() BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts:   4,
		RateLimitWait: 30 * time.Second,
		TransportWait: 2 * time.Second,
		MaxWait:       2 * time.Minute,
	}
}

func (p BackoffPolicy) ShouldRetry(err error, attemptsUsed int) RetryDecision {
	if err == nil || attemptsUsed >= p.MaxAttempts {
		return RetryDecision{}
	}
	if attemptsUsed < 1 {
		attemptsUsed = 1
	}

	switch core.KindOf(err) {
	case core.KindRateLimited:
		wait := core.RetryAfterOf(err)
		if wait <= 0 {
			wait = p.RateLimitWait
		}
		return RetryDecision{Retry: true, Wait: p.bound(wait)}
	case core.KindTransport:
		wait := p.TransportWait
		for i := 1; i < attemptsUsed; i++ {
			if p.MaxWait > 0 && wait >= p.MaxWait {
				break
			}
			wait *= 2
		}
		return RetryDecision{Retry: true, Wait: p.bound(wait)}
	default:
		return RetryDecision{}
	}
}

func (p BackoffPolicy) bound(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if p.MaxWait > 0 && d > p.MaxWait {
		return p.MaxWait
	}
	return d
}

var _ RetryPolicy = BackoffPolicy{}
