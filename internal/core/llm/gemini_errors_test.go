package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"

	"github.com/markdave123-py/pagetext/internal/core"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

const exhaustedBody = `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED",` +
	`"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"17s"}]}}`

func exhaustedAPIError(t *testing.T) error {
	t.Helper()
	aerr, ok := apierror.FromError(&googleapi.Error{Code: 429, Body: exhaustedBody})
	if !ok {
		t.Fatal("apierror did not parse the googleapi error")
	}
	return aerr
}

func TestClassifyGeminiError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   core.ErrorKind
		wait   time.Duration
		status int
	}{
		{
			name:   "429 with retry-after",
			err:    &googleapi.Error{Code: 429, Message: "quota", Header: http.Header{"Retry-After": {"12"}}},
			kind:   core.KindRateLimited,
			wait:   12 * time.Second,
			status: 429,
		},
		{
			name:   "wrapped 429 without hint",
			err:    fmt.Errorf("gemini generate: %w", &googleapi.Error{Code: 429}),
			kind:   core.KindRateLimited,
			status: 429,
		},
		{
			name:   "429 with RetryInfo in body",
			err:    fmt.Errorf("gemini generate: %w", &googleapi.Error{Code: 429, Body: exhaustedBody}),
			kind:   core.KindRateLimited,
			wait:   17 * time.Second,
			status: 429,
		},
		{
			name:   "RetryInfo wins over retry-after",
			err:    &googleapi.Error{Code: 429, Body: exhaustedBody, Header: http.Header{"Retry-After": {"3"}}},
			kind:   core.KindRateLimited,
			wait:   17 * time.Second,
			status: 429,
		},
		{
			name:   "apierror with RetryInfo",
			err:    fmt.Errorf("upload: %w", exhaustedAPIError(t)),
			kind:   core.KindRateLimited,
			wait:   17 * time.Second,
			status: 429,
		},
		{name: "503", err: &googleapi.Error{Code: 503}, kind: core.KindTransport, status: 503},
		{name: "408", err: &googleapi.Error{Code: 408}, kind: core.KindTransport, status: 408},
		{name: "400", err: &googleapi.Error{Code: 400}, kind: core.KindPermanent, status: 400},
		{name: "403", err: &googleapi.Error{Code: 403}, kind: core.KindPermanent, status: 403},
		{name: "resource exhausted text", err: errors.New("rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED"), kind: core.KindRateLimited},
		{name: "request timeout", err: fmt.Errorf("call: %w", context.DeadlineExceeded), kind: core.KindTransport},
		{name: "net error", err: fmt.Errorf("dial: %w", timeoutErr{}), kind: core.KindTransport},
		{name: "unexpected eof", err: io.ErrUnexpectedEOF, kind: core.KindTransport},
		{name: "unknown", err: errors.New("blocked: safety"), kind: core.KindPermanent},
		{name: "cancelled passes through", err: context.Canceled, kind: core.KindCanceled},
		{name: "already classified", err: core.NewRateLimited(errors.New("x"), time.Second), kind: core.KindRateLimited, wait: time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyGeminiError(tt.err)
			if k := core.KindOf(got); k != tt.kind {
				t.Fatalf("kind=%v want %v (err=%v)", k, tt.kind, got)
			}
			if w := core.RetryAfterOf(got); w != tt.wait {
				t.Fatalf("wait=%s want %s", w, tt.wait)
			}
			var xe *core.ExtractError
			if tt.status != 0 && (!errors.As(got, &xe) || xe.Status != tt.status) {
				t.Fatalf("status not recorded: %v", got)
			}
			if !errors.Is(got, tt.err) {
				t.Fatalf("classified error lost its cause: %v", got)
			}
		})
	}
	if classifyGeminiError(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestRetryAfterHeader(t *testing.T) {
	if d := retryAfterHeader(http.Header{}); d != 0 {
		t.Fatalf("empty header = %s", d)
	}
	if d := retryAfterHeader(http.Header{"Retry-After": {"5"}}); d != 5*time.Second {
		t.Fatalf("seconds = %s", d)
	}
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	if d := retryAfterHeader(http.Header{"Retry-After": {future}}); d <= 0 || d > time.Minute {
		t.Fatalf("http date = %s", d)
	}
	if d := retryAfterHeader(http.Header{"Retry-After": {"soon"}}); d != 0 {
		t.Fatalf("garbage = %s", d)
	}
}
