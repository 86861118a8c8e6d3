package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/markdave123-py/pagetext/internal/core"
	"github.com/markdave123-py/pagetext/internal/core/ingestion_engine"
	objectclient "github.com/markdave123-py/pagetext/internal/core/object-client"
	"github.com/markdave123-py/pagetext/internal/models"
)

var (
	// ErrNotFound covers unknown runs and runs owned by another user.
	ErrNotFound = errors.New("not found")
	// ErrNotReady means the run has no extracted text yet.
	ErrNotReady = errors.New("run not ready")
	// ErrFinished means the run already reached a terminal status.
	ErrFinished = errors.New("run already finished")
)

// RunDefaults fill per-run tuning the client leaves unset.
type RunDefaults struct {
	PagesPerChunk  int
	Concurrency    int
	MaxConcurrency int
}

type RunService struct {
	db       core.DbClient
	storage  core.ObjectClient
	ingestor ingestion_engine.Ingestor
	bucket   string
	defaults RunDefaults
	log      *slog.Logger
}

func NewRunService(db core.DbClient, storage core.ObjectClient, ing ingestion_engine.Ingestor, bucket string, defaults RunDefaults, log *slog.Logger) *RunService {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &RunService{db: db, storage: storage, ingestor: ing, bucket: bucket, defaults: defaults, log: log.With("component", "run_service")}
}

// SubmitRequest describes an uploaded document. Zero tuning values take the defaults.
type SubmitRequest struct {
	UserID        string
	FileName      string
	ContentType   string
	Body          io.Reader
	PagesPerChunk int
	Concurrency   int
}

// Submit stores the document, records the run and queues it for extraction.
func (s *RunService) Submit(ctx context.Context, req SubmitRequest) (*models.ExtractionRun, error) {
	perChunk, concurrency, err := s.tuning(req.PagesPerChunk, req.Concurrency)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	key := objectKey(req.UserID, runID, req.FileName)

	contentType := req.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = ingestion_engine.DetectContentType(req.FileName, nil)
	}

	url, err := s.storage.UploadFile(ctx, s.bucket, key, req.Body, contentType)
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	run := &models.ExtractionRun{
		ID:            runID,
		UserID:        req.UserID,
		FileName:      req.FileName,
		StorageURL:    url,
		ContentType:   contentType,
		Status:        models.RunUploaded,
		PagesPerChunk: perChunk,
		Concurrency:   concurrency,
	}
	if err := s.db.CreateRun(ctx, run); err != nil {
		if derr := s.storage.DeleteFile(context.WithoutCancel(ctx), s.bucket, key); derr != nil {
			s.log.Warn("orphaned upload", "key", key, "err", derr)
		}
		return nil, fmt.Errorf("create run: %w", err)
	}
	if err := s.ingestor.Enqueue(ctx, run.ID); err != nil {
		err = fmt.Errorf("enqueue run: %w", err)
		// No worker will pick the run up; close it out so it does not sit uploaded.
		run.Status = models.RunFailed
		run.Error = err.Error()
		if cerr := s.db.CompleteRun(context.WithoutCancel(ctx), run); cerr != nil {
			s.log.Warn("record enqueue failure", "run_id", run.ID, "err", cerr)
		}
		return nil, err
	}

	s.log.Info("run submitted", "run_id", run.ID, "user_id", req.UserID, "file", req.FileName)
	return run, nil
}

func (s *RunService) tuning(perChunk, concurrency int) (int, int, error) {
	if perChunk < 0 || concurrency < 0 {
		return 0, 0, fmt.Errorf("%w: pages_per_chunk and concurrency must be positive", core.ErrInvalidConfig)
	}
	if perChunk == 0 {
		perChunk = s.defaults.PagesPerChunk
	}
	if concurrency == 0 {
		concurrency = s.defaults.Concurrency
	}
	if s.defaults.MaxConcurrency > 0 && concurrency > s.defaults.MaxConcurrency {
		return 0, 0, fmt.Errorf("%w: concurrency must be <= %d", core.ErrInvalidConfig, s.defaults.MaxConcurrency)
	}
	return perChunk, concurrency, nil
}

// Get returns a run owned by userID.
func (s *RunService) Get(ctx context.Context, userID, runID string) (*models.ExtractionRun, error) {
	run, err := s.db.GetRunByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil || run.UserID != userID {
		return nil, ErrNotFound
	}
	return run, nil
}

func (s *RunService) ListByUser(ctx context.Context, userID string) ([]models.ExtractionRun, error) {
	return s.db.ListRunsByUser(ctx, userID)
}

// Chunks returns the per-range outcomes of a run in page order.
func (s *RunService) Chunks(ctx context.Context, userID, runID string) ([]models.RunChunk, error) {
	if _, err := s.Get(ctx, userID, runID); err != nil {
		return nil, err
	}
	return s.db.GetChunksByRun(ctx, runID)
}

// Text returns the assembled document text of a finished run.
func (s *RunService) Text(ctx context.Context, userID, runID string) (string, error) {
	run, err := s.Get(ctx, userID, runID)
	if err != nil {
		return "", err
	}
	if run.OutputURL == "" {
		return "", ErrNotReady
	}
	bucket, key, ok := objectclient.ParseObjectURL(run.OutputURL)
	if !ok {
		return "", fmt.Errorf("unrecognised output url %q", run.OutputURL)
	}
	b, err := s.storage.GetFile(ctx, bucket, key)
	if err != nil {
		return "", fmt.Errorf("fetch text: %w", err)
	}
	return string(b), nil
}

// Cancel stops a queued or processing run.
func (s *RunService) Cancel(ctx context.Context, userID, runID string) (*models.ExtractionRun, error) {
	run, err := s.Get(ctx, userID, runID)
	if err != nil {
		return nil, err
	}

	switch run.Status {
	case models.RunUploaded:
		// Queued runs are skipped by the workers once marked.
		if err := s.db.UpdateRunStatus(ctx, runID, models.RunCancelled); err != nil {
			return nil, err
		}
		run.Status = models.RunCancelled
	case models.RunProcessing:
		if !s.ingestor.Cancel(runID) {
			// Not running on this instance; record the request so a retry skips it.
			if err := s.db.UpdateRunStatus(ctx, runID, models.RunCancelled); err != nil {
				return nil, err
			}
			run.Status = models.RunCancelled
		}
	default:
		return run, ErrFinished
	}

	s.log.Info("run cancel requested", "run_id", runID, "status", run.Status)
	return run, nil
}

// objectKey creates a consistent S3 key layout.
func objectKey(userID, runID, filename string) string {
	filename = path.Base(strings.TrimSpace(filename))
	filename = strings.ReplaceAll(filename, " ", "_")
	return path.Join("users", userID, "runs", runID, filename)
}
