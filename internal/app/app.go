package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/markdave123-py/pagetext/internal/config"
	"github.com/markdave123-py/pagetext/internal/core"
	db "github.com/markdave123-py/pagetext/internal/core/database"
	"github.com/markdave123-py/pagetext/internal/core/ingestion_engine"
	"github.com/markdave123-py/pagetext/internal/core/llm"
	objectclient "github.com/markdave123-py/pagetext/internal/core/object-client"
	"github.com/markdave123-py/pagetext/internal/services"
)

type App struct {
	DBClient     *db.DatabaseClient
	ObjectClient *objectclient.S3Client
	Ingestor     ingestion_engine.Ingestor
	Server       *Server

	closers []io.Closer
	log     *slog.Logger
}

// NewApp connects every dependency of the HTTP service and wires the routes.
// Workers are started by Run.
func NewApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if err := cfg.ValidateService(); err != nil {
		return nil, err
	}

	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{log: log.With("component", "app")}

	dbClient, err := db.NewDatabaseClient(appCtx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.DBClient = dbClient
	a.closers = append(a.closers, dbClient)
	a.log.Info("database initialized and ready")

	objClient, err := objectclient.NewS3Client(appCtx, objectclient.Options{
		AccessKey: cfg.AwsAccessKey,
		SecretKey: cfg.AwsSecretKey,
		Region:    cfg.AwsRegion,
		Bucket:    cfg.BucketName,
	}, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.ObjectClient = objClient
	a.log.Info("object client initialized and ready", "bucket", cfg.BucketName)

	backend, backendCloser, err := NewBackend(appCtx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, backendCloser)

	// Passage indexing and querying need a Gemini key even with the local backend.
	var (
		embedder core.EmbeddingProvider
		gen      core.LLMProvider
	)
	if cfg.AIAPIKey != "" {
		e, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel, cfg.EmbedDim)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
		}
		g, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
		if err != nil {
			e.Close()
			a.Close()
			return nil, fmt.Errorf("couldn't initialize the llm: %w", err)
		}
		embedder, gen = e, g
		a.closers = append(a.closers, e, g)
	} else {
		a.log.Warn("GEMINI_API_KEY not set; passage indexing and queries are disabled")
	}

	ingCfg := &ingestion_engine.IngestConfig{
		PagesPerChunk: cfg.PagesPerChunk,
		FallbackPages: cfg.FallbackPages,
		PassageTokens: cfg.PassageTokens,
		OverlapTokens: cfg.OverlapTokens,
		EmbedBatch:    cfg.EmbedBatch,
		Run:           RunSettings(cfg, log),
	}
	ing := ingestion_engine.NewDocumentIngestor(dbClient, objClient, backend, embedder, ingCfg, cfg.BucketName, log)
	a.Ingestor = ing

	runs := services.NewRunService(dbClient, objClient, ing, cfg.BucketName, services.RunDefaults{
		PagesPerChunk:  cfg.PagesPerChunk,
		Concurrency:    cfg.Concurrency,
		MaxConcurrency: 8,
	}, log)
	users := services.NewUserService(dbClient)
	queries := services.NewQueryService(runs, dbClient, embedder, gen)

	a.Server = NewServer(cfg.Port, []byte(cfg.JWTSecret), users, runs, queries, log)
	return a, nil
}

// Run starts the ingest workers and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context, workers int) error {
	a.Ingestor.Start(ctx, workers)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	return a.Server.Shutdown(shutdownCtx)
}

// Close releases clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
