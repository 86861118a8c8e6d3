package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/markdave123-py/pagetext/internal/core"
	"github.com/markdave123-py/pagetext/internal/logging"
	"github.com/markdave123-py/pagetext/internal/models"
)

var _ Ingestor = (*DocumentIngestor)(nil)

// NewDocumentIngestor constructs the ingestor with a bounded job queue (64).
// embedder may be nil, which disables passage indexing.
func NewDocumentIngestor(
	db core.DbClient,
	obj core.ObjectClient,
	backend core.ExtractionBackend,
	emb core.EmbeddingProvider,
	cfg *IngestConfig,
	bucket string,
	log *slog.Logger,
) *DocumentIngestor {
	if log == nil {
		log = logging.Discard()
	}
	return &DocumentIngestor{
		db: db, obj: obj, backend: backend, embedder: emb, cfg: cfg, bucket: bucket,
		loader: NewDocumentLoader(obj, log),
		log:    log.With("component", "ingestor"),
		jobs:   make(chan string, 64),
		active: map[string]context.CancelFunc{},
	}
}

// Start runs numWorkers goroutines reading from the jobs channel until ctx is done.
// Each worker drives one run at a time through the extraction orchestrator.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					i.log.Info("worker shutting down", "worker", w)
					return
				case runID := <-i.jobs:
					i.log.Info("processing run", "run_id", runID, "worker", w)

					if err := i.ProcessOne(ctx, runID); err != nil {
						i.log.Error("run processing failed", "run_id", runID, "err", err)
					}
				}
			}
		}(w)
	}
}

// Enqueue schedules a run for extraction.
// If the queue is full, this call blocks until space frees up or ctx is done.
func (i *DocumentIngestor) Enqueue(ctx context.Context, runID string) error {
	select {
	case i.jobs <- runID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops a run that is currently processing. It reports whether the run was active.
func (i *DocumentIngestor) Cancel(runID string) bool {
	i.mu.Lock()
	cancel, ok := i.active[runID]
	i.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (i *DocumentIngestor) track(runID string, cancel context.CancelFunc) func() {
	i.mu.Lock()
	i.active[runID] = cancel
	i.mu.Unlock()
	return func() {
		i.mu.Lock()
		delete(i.active, runID)
		i.mu.Unlock()
		cancel()
	}
}

// ProcessOne loads, extracts, persists and indexes a single run.
// Per-range failures end in a partial run; only infrastructure errors are returned.
func (i *DocumentIngestor) ProcessOne(ctx context.Context, runID string) error {
	run, err := i.db.GetRunByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}
	if run.Status == models.RunCancelled {
		i.log.Info("skipping cancelled run", "run_id", runID)
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer i.track(runID, cancel)()

	// Bookkeeping must land even after runCtx is cancelled.
	dbCtx := context.WithoutCancel(ctx)
	log := i.log.With("run_id", runID)

	claimed, err := i.db.ClaimRun(dbCtx, runID)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	if !claimed {
		log.Info("run no longer queued, skipping")
		return nil
	}

	rep, err := i.extract(runCtx, run, log)
	if err != nil {
		run.Status = models.RunFailed
		if errors.Is(err, context.Canceled) {
			run.Status = models.RunCancelled
		}
		run.Error = err.Error()
		if cerr := i.db.CompleteRun(dbCtx, run); cerr != nil {
			log.Error("record run failure", "err", cerr)
		}
		return err
	}

	run.Chunks = rep.Chunks
	run.SuccessCount = rep.SuccessCount
	run.FailedCount = rep.FailedCount()
	run.TotalChars = rep.TotalChars

	if err := i.db.InsertRunChunks(dbCtx, chunkRows(runID, rep)); err != nil {
		err = fmt.Errorf("insert chunks: %w", err)
		run.Status = models.RunFailed
		run.Error = err.Error()
		if cerr := i.db.CompleteRun(dbCtx, run); cerr != nil {
			log.Error("record run failure", "err", cerr)
		}
		return err
	}

	if i.obj != nil && i.bucket != "" {
		key := fmt.Sprintf("runs/%s/text.txt", runID)
		url, err := i.obj.UploadFile(dbCtx, i.bucket, key, strings.NewReader(rep.Text), "text/plain; charset=utf-8")
		if err != nil {
			log.Error("upload text", "err", err)
			run.Error = fmt.Sprintf("upload text: %v", err)
		} else {
			run.OutputURL = url
		}
	}

	if i.embedder != nil && i.cfg.PassageTokens > 0 && !rep.Cancelled {
		ps := splitPassages(rep.Results, i.cfg.PassageTokens, i.cfg.OverlapTokens)
		if err := i.embedAndPersist(runCtx, runID, ps, i.cfg.EmbedBatch); err != nil {
			log.Warn("passage indexing failed", "passages", len(ps), "err", err)
		} else {
			log.Info("passages indexed", "passages", len(ps))
		}
	}

	run.Status = RunStatus(rep)
	if err := i.db.CompleteRun(dbCtx, run); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}

	log.Info("run complete", "status", run.Status, "success", run.SuccessCount, "failed", run.FailedCount, "chars", run.TotalChars)
	return nil
}

// extract loads the source and runs it through the orchestrator.
func (i *DocumentIngestor) extract(ctx context.Context, run *models.ExtractionRun, log *slog.Logger) (*Report, error) {
	doc, err := i.loader.Load(ctx, run.StorageURL)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	pages := doc.Pages
	if pages == 0 {
		pages = i.cfg.FallbackPages
		log.Warn("page count unknown, using fallback", "pages", pages)
	}
	run.TotalPages = pages

	perChunk := run.PagesPerChunk
	if perChunk <= 0 {
		perChunk = i.cfg.PagesPerChunk
	}
	set := i.cfg.Run
	if run.Concurrency > 0 {
		set.Concurrency = run.Concurrency
	}
	set.Logger = log

	started := time.Now()
	ext, err := i.backend.Prepare(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("prepare document: %w", err)
	}
	if c, ok := ext.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				log.Warn("release prepared document", "err", err)
			}
		}()
	}
	log.Info("document prepared", "pages", pages, "elapsed", time.Since(started).Round(time.Millisecond))

	return Extract(ctx, pages, perChunk, ext, set, logging.NewLogSink(log))
}

// RunStatus maps a report onto the terminal run status.
func RunStatus(rep *Report) string {
	switch {
	case rep.Cancelled:
		return models.RunCancelled
	case rep.FailedCount() == 0:
		return models.RunReady
	case rep.SuccessCount == 0:
		return models.RunFailed
	default:
		return models.RunPartial
	}
}

// chunkRows records every completed range, including those past the truncation point.
func chunkRows(runID string, rep *Report) []models.RunChunk {
	rows := make([]models.RunChunk, 0, len(rep.Results))
	for _, res := range rep.Results {
		row := models.RunChunk{
			RunID:     runID,
			Position:  res.Index,
			StartPage: res.Start,
			EndPage:   res.End,
			Attempts:  res.Attempts,
			Text:      res.Text,
		}
		switch {
		case !res.OK():
			row.Status = models.ChunkFailed
			row.Error = res.Err.Error()
		case res.Blank():
			row.Status = models.ChunkEmpty
		default:
			row.Status = models.ChunkSuccess
		}
		rows = append(rows, row)
	}
	return rows
}
