package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/markdave123-py/pagetext/internal/config"
	"github.com/markdave123-py/pagetext/internal/core"
	"github.com/markdave123-py/pagetext/internal/core/ingestion_engine"
	"github.com/markdave123-py/pagetext/internal/core/llm"
	"github.com/markdave123-py/pagetext/internal/core/pdftext"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewBackend builds the extraction backend named by cfg.Backend. The closer releases its client.
func NewBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (core.ExtractionBackend, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendGemini:
		b, err := llm.NewGeminiBackend(ctx, llm.GeminiBackendConfig{
			APIKey:            cfg.AIAPIKey,
			Model:             cfg.ExtractModel,
			Language:          cfg.Language,
			RequestsPerMinute: cfg.RequestsPerMinute,
			RequestTimeout:    cfg.RequestTimeout,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case config.BackendLocal:
		return pdftext.NewLocalBackend(log), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown extraction backend %q", core.ErrInvalidConfig, cfg.Backend)
	}
}

// RunSettings maps cfg onto orchestrator settings.
func RunSettings(cfg *config.Config, log *slog.Logger) ingestion_engine.Settings {
	policy := ingestion_engine.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.MaxAttempts
	policy.RateLimitWait = cfg.RateLimitWait
	policy.TransportWait = cfg.TransportWait

	return ingestion_engine.Settings{
		Concurrency: cfg.Concurrency,
		Pacing:      cfg.Pacing,
		Retry:       policy,
		Logger:      log,
	}
}
