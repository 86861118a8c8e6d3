package models

import (
	"time"
)

// Run statuses.
const (
	RunUploaded   = "uploaded"
	RunProcessing = "processing"
	RunReady      = "ready"
	RunPartial    = "partial"
	RunFailed     = "failed"
	RunCancelled  = "cancelled"
)

// Chunk statuses.
const (
	ChunkSuccess = "success"
	ChunkEmpty   = "empty"
	ChunkFailed  = "failed"
)

// User represents an authenticated user of the service.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ExtractionRun is one document extraction: its source, tuning and outcome counters.
type ExtractionRun struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	FileName      string    `db:"file_name" json:"file_name"`
	StorageURL    string    `db:"storage_url" json:"storage_url"` // S3 URL of the source PDF
	OutputURL     string    `db:"output_url" json:"output_url,omitempty"`
	ContentType   string    `db:"content_type" json:"content_type"`
	Status        string    `db:"status" json:"status"` // uploaded | processing | ready | partial | failed | cancelled
	TotalPages    int       `db:"total_pages" json:"total_pages"`
	PagesPerChunk int       `db:"pages_per_chunk" json:"pages_per_chunk"`
	Concurrency   int       `db:"concurrency" json:"concurrency"`
	Chunks        int       `db:"chunks" json:"chunks"`
	SuccessCount  int       `db:"success_count" json:"success_count"`
	FailedCount   int       `db:"failed_count" json:"failed_count"`
	TotalChars    int       `db:"total_chars" json:"total_chars"`
	Error         string    `db:"error" json:"error,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// RunChunk is the terminal outcome of one page range of a run.
type RunChunk struct {
	ID        string    `db:"id" json:"id"`
	RunID     string    `db:"run_id" json:"run_id"`
	Position  int       `db:"position" json:"position"`
	StartPage int       `db:"start_page" json:"start_page"`
	EndPage   int       `db:"end_page" json:"end_page"`
	Status    string    `db:"status" json:"status"` // success | empty | failed
	Attempts  int       `db:"attempts" json:"attempts"`
	Text      string    `db:"text" json:"text,omitempty"`
	Error     string    `db:"error" json:"error,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RunPassage is a token-bounded slice of extracted text, embedded for retrieval.
type RunPassage struct {
	ID         string    `db:"id" json:"id"`
	RunID      string    `db:"run_id" json:"run_id"`
	Position   int       `db:"position" json:"position"`
	StartPage  int       `db:"start_page" json:"start_page"`
	EndPage    int       `db:"end_page" json:"end_page"`
	Text       string    `db:"text" json:"text"`
	Embedding  []float32 `db:"embedding" json:"-"` // pgvector column
	TokenCount int       `db:"token_count" json:"token_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
