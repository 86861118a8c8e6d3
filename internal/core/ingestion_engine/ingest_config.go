package ingestion_engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/markdave123-py/pagetext/internal/core"
)

// DefaultSeparator joins the text of consecutive page ranges.
const DefaultSeparator = "\n\n--- Page Break ---\n\n"

// Settings tunes one orchestrator run.
//
// Concurrency:    max extraction calls in flight (>= 1).
// Pacing:         quiet delay each range after the first observes before its first call.
// Retry:          retry policy; nil means DefaultRetryPolicy().
// Separator:      page-break separator for the final text; "" means DefaultSeparator.
// DropBlankPages: omit blank interior ranges from the final text instead of keeping an empty slot.
// Logger:         structured logger; nil discards.
type Settings struct {
	Concurrency    int
	Pacing         time.Duration
	Retry          RetryPolicy
	Separator      string
	DropBlankPages bool
	Logger         *slog.Logger
}

func (s Settings) withDefaults() (Settings, error) {
	if s.Concurrency < 1 {
		return s, fmt.Errorf("%w: concurrency must be >= 1, got %d", core.ErrInvalidConfig, s.Concurrency)
	}
	if s.Pacing < 0 {
		return s, fmt.Errorf("%w: pacing must be >= 0, got %s", core.ErrInvalidConfig, s.Pacing)
	}
	if s.Retry == nil {
		s.Retry = DefaultRetryPolicy()
	}
	if s.Separator == "" {
		s.Separator = DefaultSeparator
	}
	if s.Logger == nil {
		s.Logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// IngestConfig tunes the background ingestion of uploaded documents.
//
// PagesPerChunk:   pages per extraction call.
// FallbackPages:   page count assumed when the PDF cannot be parsed locally; trailing truncation trims the excess.
// PassageTokens:   approximate tokens per embedded passage (0 disables passage indexing).
// OverlapTokens:   token overlap between consecutive passages.
// EmbedBatch:      passages embedded per provider call.
// Run:             orchestrator settings.
type IngestConfig struct {
	PagesPerChunk int
	FallbackPages int
	PassageTokens int
	OverlapTokens int
	EmbedBatch    int
	Run           Settings
}

// passage is the internal representation of an embeddable slice of extracted text.
//
// Pos:      stable, zero-based position of the passage inside the run.
// Text:     passage content (built from one or more lines).
// TokenCnt: approximate token count (used for batching and overlap math).
type passage struct {
	Pos       int
	StartPage int
	EndPage   int
	Text      string
	TokenCnt  int
}

// DocumentIngestor runs extractions for uploaded documents in the background:
//
// db:       persistence for runs, chunk outcomes and passages.
// loader:   fetches source documents from object storage.
// backend:  prepares documents for page extraction (Gemini or local).
// embedder: optional embedding provider for passage indexing.
// cfg:      runtime tuning knobs.
// jobs:     in-memory queue of run IDs to process.
// active:   cancel funcs of runs currently processing.
type DocumentIngestor struct {
	db       core.DbClient
	obj      core.ObjectClient
	loader   *DocumentLoader
	backend  core.ExtractionBackend
	embedder core.EmbeddingProvider
	cfg      *IngestConfig
	bucket   string
	log      *slog.Logger
	jobs     chan string

	mu     sync.Mutex
	active map[string]context.CancelFunc
}
