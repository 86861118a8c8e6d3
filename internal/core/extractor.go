package core

import (
	"context"
	"fmt"
)

// PageRange is one contiguous, 1-based page range scheduled for extraction.
// Index is its zero-based position in the plan.
type PageRange struct {
	Index int `json:"index"`
	Start int `json:"start_page"`
	End   int `json:"end_page"`
}

func (r PageRange) String() string { return fmt.Sprintf("pages %d-%d", r.Start, r.End) }

// Span returns the page bounds without the plan index.
func (r PageRange) Span() PageSpan { return PageSpan{Start: r.Start, End: r.End} }

// PageSpan is a bare (start, end) page pair, used for failure accounting.
type PageSpan struct {
	Start int `json:"start_page"`
	End   int `json:"end_page"`
}

// Document is a source document loaded fully into memory.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
	// Pages is the detected page count; 0 when unknown.
	Pages int
}

// PageExtractor extracts the text of one page range of an already prepared document.
// Implementations own their transport, auth and timeouts and map failures into ExtractError.
type PageExtractor interface {
	ExtractPages(ctx context.Context, r PageRange) (string, error)
}

// ExtractionBackend prepares a document for page extraction (e.g. uploads it once).
// The returned extractor may implement io.Closer to release remote resources.
type ExtractionBackend interface {
	Prepare(ctx context.Context, doc *Document) (PageExtractor, error)
}

// EventKind enumerates the orchestrator events a ProgressSink observes.
type EventKind int

const (
	EventStarted EventKind = iota
	EventProgress
	EventRateLimited
	EventCompleted
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventProgress:
		return "progress"
	case EventRateLimited:
		return "rate_limited"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is one observation about a page range.
//
// Percent: run-wide completion (EventProgress).
// Wait:    backoff before the next attempt, in seconds (EventRateLimited).
// Chars:   extracted character count (EventCompleted).
// Message: failure or backoff reason (EventFailed, EventRateLimited).
type Event struct {
	Index   int
	Start   int
	End     int
	Kind    EventKind
	Attempt int
	Percent int
	Wait    float64
	Chars   int
	Message string
}

// ProgressSink observes orchestrator events. It is called concurrently from
// several workers and must serialize internally. It never affects the run.
type ProgressSink interface {
	OnEvent(ev Event)
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(ev Event)

func (f SinkFunc) OnEvent(ev Event) { f(ev) }

// NopSink discards all events.
type NopSink struct{}

func (NopSink) OnEvent(Event) {}

// MultiSink fans an event out to several sinks in order.
type MultiSink []ProgressSink

func (m MultiSink) OnEvent(ev Event) {
	for _, s := range m {
		if s != nil {
			s.OnEvent(ev)
		}
	}
}
