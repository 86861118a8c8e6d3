package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/markdave123-py/pagetext/internal/config"
	"github.com/markdave123-py/pagetext/internal/core"
	"github.com/markdave123-py/pagetext/internal/core/ingestion_engine"
	"github.com/markdave123-py/pagetext/internal/core/pdftext"
	"github.com/markdave123-py/pagetext/internal/logging"
)

func TestNewBackend(t *testing.T) {
	log := logging.Discard()

	be, closer, err := NewBackend(context.Background(), &config.Config{Backend: config.BackendLocal}, log)
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	if _, ok := be.(*pdftext.LocalBackend); !ok {
		t.Fatalf("local backend type %T", be)
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, _, err := NewBackend(context.Background(), &config.Config{Backend: config.BackendGemini}, log); !errors.Is(err, core.ErrInvalidConfig) {
		t.Fatalf("gemini without key: err=%v", err)
	}
	if _, _, err := NewBackend(context.Background(), &config.Config{Backend: "ocr"}, log); !errors.Is(err, core.ErrInvalidConfig) {
		t.Fatalf("unknown backend: err=%v", err)
	}
}

func TestRunSettings(t *testing.T) {
	cfg := &config.Config{Concurrency: 3, Pacing: time.Second, MaxAttempts: 2, RateLimitWait: 5 * time.Second, TransportWait: time.Second}
	set := RunSettings(cfg, logging.Discard())
	if set.Concurrency != 3 || set.Pacing != time.Second {
		t.Fatalf("settings %+v", set)
	}
	p, ok := set.Retry.(ingestion_engine.BackoffPolicy)
	if !ok {
		t.Fatalf("retry policy type %T", set.Retry)
	}
	if p.MaxAttempts != 2 || p.RateLimitWait != 5*time.Second || p.TransportWait != time.Second {
		t.Fatalf("policy %+v", p)
	}
}
