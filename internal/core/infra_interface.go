package core

import (
	"context"
	"io"

	"github.com/markdave123-py/pagetext/internal/models"
)

// DbClient defines all persistence operations the service needs.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) (err error)
	GetUserByEmail(ctx context.Context, email string) (user *models.User, err error)

	CreateRun(ctx context.Context, run *models.ExtractionRun) error
	GetRunByID(ctx context.Context, id string) (*models.ExtractionRun, error)
	ListRunsByUser(ctx context.Context, userID string) ([]models.ExtractionRun, error)
	UpdateRunStatus(ctx context.Context, id string, status string) error
	// ClaimRun moves an uploaded run to processing and reports whether it did.
	ClaimRun(ctx context.Context, id string) (bool, error)
	CompleteRun(ctx context.Context, run *models.ExtractionRun) error

	InsertRunChunks(ctx context.Context, chunks []models.RunChunk) error
	GetChunksByRun(ctx context.Context, runID string) ([]models.RunChunk, error)

	InsertRunPassages(ctx context.Context, passages []models.RunPassage) error
	SearchRunPassages(ctx context.Context, runID string, queryVec []float32, limit int) ([]models.RunPassage, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}

// EmbeddingProvider turns passages into vectors for pgvector search.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// LLMProvider answers questions over retrieved passages.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
