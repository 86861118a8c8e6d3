package llm

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"

	"github.com/markdave123-py/pagetext/internal/core"
)

// classifyGeminiError maps a genai/googleapi failure onto the extraction error kinds.
// Cancellation of the caller's context is passed through untouched.
func classifyGeminiError(err error) error {
	if err == nil {
		return nil
	}
	var xe *core.ExtractError
	if errors.As(err, &xe) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	// Only the per-request timeout reaches here as a deadline; the caller's own ctx is checked first.
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewTransport(err)
	}

	// The REST transport returns *googleapi.Error; its JSON body may carry a RetryInfo detail.
	var aerr *apierror.APIError
	if !errors.As(err, &aerr) {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			parsed, ok := apierror.FromError(gerr)
			if !ok {
				return byStatus(err, gerr.Code, retryAfterHeader(gerr.Header))
			}
			aerr = parsed
		}
	}
	if aerr != nil {
		return byStatus(err, apiErrorCode(aerr), apiErrorWait(aerr))
	}

	msg := err.Error()
	if strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "Error 429") {
		return core.NewRateLimited(err, 0)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return core.NewTransport(err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return core.NewTransport(err)
	}
	return core.NewPermanent(err)
}

func byStatus(err error, code int, wait time.Duration) error {
	var xe *core.ExtractError
	switch {
	case code == http.StatusTooManyRequests:
		xe = core.NewRateLimited(err, wait)
	case code == http.StatusRequestTimeout || code >= 500:
		xe = core.NewTransport(err)
	default:
		xe = core.NewPermanent(err)
	}
	if code > 0 {
		xe.Status = code
	}
	return xe
}

func apiErrorCode(aerr *apierror.APIError) int {
	if code := aerr.HTTPCode(); code > 0 {
		return code
	}
	return grpcToHTTP(aerr)
}

// apiErrorWait prefers the RetryInfo delay and falls back to a Retry-After header.
func apiErrorWait(aerr *apierror.APIError) time.Duration {
	if ri := aerr.Details().RetryInfo; ri != nil {
		if d := ri.GetRetryDelay().AsDuration(); d > 0 {
			return d
		}
	}
	var gerr *googleapi.Error
	if errors.As(aerr.Unwrap(), &gerr) {
		return retryAfterHeader(gerr.Header)
	}
	return 0
}

// grpcToHTTP covers APIErrors built from a gRPC status, which carry no HTTP code.
func grpcToHTTP(aerr *apierror.APIError) int {
	st := aerr.GRPCStatus()
	if st == nil {
		return 0
	}
	switch st.Code().String() {
	case "ResourceExhausted":
		return http.StatusTooManyRequests
	case "Unavailable", "DeadlineExceeded", "Internal", "Aborted":
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// retryAfterHeader parses Retry-After as delta-seconds or an HTTP date.
func retryAfterHeader(h http.Header) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
