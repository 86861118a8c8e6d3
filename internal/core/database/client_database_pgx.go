package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/pagetext/internal/config"
	"github.com/markdave123-py/pagetext/internal/core"
	"github.com/markdave123-py/pagetext/internal/models"
)

type DatabaseClient struct {
	db  *sql.DB
	log *slog.Logger
}

var _ core.DbClient = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config, log *slog.Logger) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("%w: DATABASE_URL is empty", core.ErrInvalidConfig)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	dsn, err := withSSL(cfg.DatabaseURL, cfg.SslCertPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	// Ensure bootstrap once
	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	log.Info("database ready", "component", "database")
	return &DatabaseClient{db: db, log: log.With("component", "database")}, nil
}

// withSSL appends verify-ca params when a root cert is configured.
func withSSL(rawURL, certPath string) (string, error) {
	if certPath == "" {
		return rawURL, nil
	}
	if _, err := os.Stat(certPath); err != nil {
		return "", fmt.Errorf("ssl cert not accessible at %q: %w", certPath, err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	q := u.Query()
	q.Set("sslmode", "verify-ca")
	q.Set("sslrootcert", certPath)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// nullTime lets COALESCE(..., now()) fill unset timestamps.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// Implementing the db interface for user

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO users (id, first_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()), COALESCE($6, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		user.ID, user.FirstName, user.Email, user.PasswordHash, nullTime(user.CreatedAt), nullTime(user.UpdatedAt))
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, first_name, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Implementing the db interface for extraction runs

const runColumns = `id, user_id, file_name, storage_url, output_url, content_type, status,
	total_pages, pages_per_chunk, concurrency, chunks, success_count, failed_count, total_chars,
	error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*models.ExtractionRun, error) {
	var r models.ExtractionRun
	err := s.Scan(
		&r.ID, &r.UserID, &r.FileName, &r.StorageURL, &r.OutputURL, &r.ContentType, &r.Status,
		&r.TotalPages, &r.PagesPerChunk, &r.Concurrency, &r.Chunks, &r.SuccessCount, &r.FailedCount, &r.TotalChars,
		&r.Error, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *DatabaseClient) CreateRun(ctx context.Context, run *models.ExtractionRun) error {
	if run == nil {
		return errors.New("nil run")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO extraction_runs
			(id, user_id, file_name, storage_url, content_type, status, pages_per_chunk, concurrency, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()), COALESCE($10, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		run.ID, run.UserID, run.FileName, run.StorageURL, run.ContentType, run.Status,
		run.PagesPerChunk, run.Concurrency, nullTime(run.CreatedAt), nullTime(run.UpdatedAt))
	return err
}

func (c *DatabaseClient) GetRunByID(ctx context.Context, id string) (*models.ExtractionRun, error) {
	q := `SELECT ` + runColumns + ` FROM extraction_runs WHERE id = $1`
	r, err := scanRun(c.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (c *DatabaseClient) ListRunsByUser(ctx context.Context, userID string) ([]models.ExtractionRun, error) {
	q := `SELECT ` + runColumns + ` FROM extraction_runs WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ExtractionRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateRunStatus(ctx context.Context, id string, status string) error {
	const q = `
		UPDATE extraction_runs
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// ClaimRun marks a run processing only while it is still uploaded, so a
// cancel recorded after the worker loaded the run is not overwritten.
func (c *DatabaseClient) ClaimRun(ctx context.Context, id string) (bool, error) {
	const q = `
		UPDATE extraction_runs
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
	`
	res, err := c.db.ExecContext(ctx, q, id, models.RunProcessing, models.RunUploaded)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CompleteRun records the outcome counters and terminal status of a run.
func (c *DatabaseClient) CompleteRun(ctx context.Context, run *models.ExtractionRun) error {
	const q = `
		UPDATE extraction_runs
		SET status = $2, output_url = $3, total_pages = $4, chunks = $5, success_count = $6,
		    failed_count = $7, total_chars = $8, error = $9, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q,
		run.ID, run.Status, run.OutputURL, run.TotalPages, run.Chunks, run.SuccessCount,
		run.FailedCount, run.TotalChars, run.Error)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}
	return nil
}

// Implementing the db interface for run chunks

// InsertRunChunks inserts chunk outcomes in a single transaction.
func (c *DatabaseClient) InsertRunChunks(ctx context.Context, chunks []models.RunChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO run_chunks
			(id, run_id, position, start_page, end_page, status, attempts, text, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()))
		ON CONFLICT (run_id, position) DO UPDATE
		SET status = EXCLUDED.status, attempts = EXCLUDED.attempts, text = EXCLUDED.text, error = EXCLUDED.error
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.RunID, ch.Position, ch.StartPage, ch.EndPage, ch.Status, ch.Attempts, ch.Text, ch.Error, nullTime(ch.CreatedAt),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (c *DatabaseClient) GetChunksByRun(ctx context.Context, runID string) ([]models.RunChunk, error) {
	const q = `
		SELECT id, run_id, position, start_page, end_page, status, attempts, text, error, created_at
		FROM run_chunks
		WHERE run_id = $1
		ORDER BY position ASC
	`
	rows, err := c.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RunChunk
	for rows.Next() {
		var ch models.RunChunk
		if err := rows.Scan(
			&ch.ID, &ch.RunID, &ch.Position, &ch.StartPage, &ch.EndPage, &ch.Status, &ch.Attempts, &ch.Text, &ch.Error, &ch.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// Implementing the db interface for run passages

// InsertRunPassages inserts embedded passages in a single transaction.
func (c *DatabaseClient) InsertRunPassages(ctx context.Context, passages []models.RunPassage) error {
	if len(passages) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO run_passages
			(id, run_id, position, start_page, end_page, text, embedding, token_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()))
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range passages {
		p := &passages[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		vec := pgvector.NewVector(p.Embedding)
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.RunID, p.Position, p.StartPage, p.EndPage, p.Text, vec, p.TokenCount, nullTime(p.CreatedAt),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SearchRunPassages finds the top-k passages of a run closest to a query embedding.
func (c *DatabaseClient) SearchRunPassages(ctx context.Context, runID string, queryVec []float32, limit int) ([]models.RunPassage, error) {
	const q = `
		SELECT id, run_id, position, start_page, end_page, text, embedding, token_count, created_at
		FROM run_passages
		WHERE run_id = $1
		ORDER BY embedding <-> $2
		LIMIT $3
	`
	rows, err := c.db.QueryContext(ctx, q, runID, pgvector.NewVector(queryVec), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RunPassage
	for rows.Next() {
		var (
			p   models.RunPassage
			emb pgvector.Vector
		)
		if err := rows.Scan(&p.ID, &p.RunID, &p.Position, &p.StartPage, &p.EndPage, &p.Text, &emb, &p.TokenCount, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Embedding = emb.Slice()
		out = append(out, p)
	}
	return out, rows.Err()
}
