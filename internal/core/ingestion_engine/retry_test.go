package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/markdave123-py/pagetext/internal/core"
)

func TestBackoffPolicy_Classification(t *testing.T) {
	p := BackoffPolicy{MaxAttempts: 4, RateLimitWait: 30 * time.Second, TransportWait: 2 * time.Second, MaxWait: time.Minute}
	boom := errors.New("boom")

	cases := []struct {
		name  string
		err   error
		retry bool
		wait  time.Duration
	}{
		{"rate limited uses default wait", core.NewRateLimited(boom, 0), true, 30 * time.Second},
		{"rate limited honours server hint", core.NewRateLimited(boom, 7*time.Second), true, 7 * time.Second},
		{"server hint is capped", core.NewRateLimited(boom, 10*time.Minute), true, time.Minute},
		{"wrapped rate limit sentinel", fmt.Errorf("call: %w", core.ErrRateLimited), true, 30 * time.Second},
		{"transport", core.NewTransport(boom), true, 2 * time.Second},
		{"permanent", core.NewPermanent(boom), false, 0},
		{"unknown is permanent", boom, false, 0},
		{"cancelled", context.Canceled, false, 0},
		{"invalid config", core.ErrInvalidConfig, false, 0},
		{"nil", nil, false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.ShouldRetry(tc.err, 1)
			if got.Retry != tc.retry || got.Wait != tc.wait {
				t.Fatalf("got %+v want retry=%v wait=%s", got, tc.retry, tc.wait)
			}
		})
	}
}

func TestBackoffPolicy_GivesUpAtMaxAttempts(t *testing.T) {
	p := DefaultRetryPolicy()
	errs := []error{core.NewRateLimited(errors.New("429"), 0), core.NewTransport(errors.New("reset"))}
	for _, err := range errs {
		for used := 1; used < p.MaxAttempts; used++ {
			if !p.ShouldRetry(err, used).Retry {
				t.Fatalf("%v: expected retry after %d attempts", err, used)
			}
		}
		for used := p.MaxAttempts; used < p.MaxAttempts+3; used++ {
			if d := p.ShouldRetry(err, used); d.Retry {
				t.Fatalf("%v: expected give up after %d attempts, got %+v", err, used, d)
			}
		}
	}
}

func TestBackoffPolicy_TransportBackoffDoubles(t *testing.T) {
	p := BackoffPolicy{MaxAttempts: 10, TransportWait: time.Second, MaxWait: 5 * time.Second}
	err := core.NewTransport(errors.New("timeout"))
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := p.ShouldRetry(err, i+1).Wait; got != w {
			t.Fatalf("attempt %d wait=%s want %s", i+1, got, w)
		}
	}
}

func TestBackoffPolicy_Pure(t *testing.T) {
	p := DefaultRetryPolicy()
	err := core.NewRateLimited(errors.New("429"), 3*time.Second)
	a := p.ShouldRetry(err, 2)
	b := p.ShouldRetry(err, 2)
	if a != b {
		t.Fatalf("decisions differ: %+v vs %+v", a, b)
	}
}

func TestBackoffPolicy_SingleAttempt(t *testing.T) {
	p := BackoffPolicy{MaxAttempts: 1}
	if p.ShouldRetry(core.NewTransport(errors.New("x")), 1).Retry {
		t.Fatal("MaxAttempts=1 must never retry")
	}
}
