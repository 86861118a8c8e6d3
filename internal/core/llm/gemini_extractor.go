package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/markdave123-py/pagetext/internal/core"
)

// GeminiBackendConfig tunes the Gemini page extractor.
//
// Model:             generative model used for extraction.
// Language:          script the model must preserve verbatim ("" = no hint).
// RequestsPerMinute: client-side request budget (0 = unlimited).
// RequestTimeout:    per-call timeout; an expired call is a transport failure.
// PollInterval:      how often an uploaded file is checked until it becomes ACTIVE.
// Endpoint:          API base URL override ("" = Google's endpoint).
type GeminiBackendConfig struct {
	APIKey            string
	Model             string
	Language          string
	RequestsPerMinute int
	RequestTimeout    time.Duration
	PollInterval      time.Duration
	Endpoint          string
}

// GeminiBackend uploads a document once and extracts page ranges from it with
// one generateContent call per range.
type GeminiBackend struct {
	client  *genai.Client
	cfg     GeminiBackendConfig
	limiter *rate.Limiter
	log     *slog.Logger
}

var _ core.ExtractionBackend = (*GeminiBackend)(nil)

func NewGeminiBackend(ctx context.Context, cfg GeminiBackendConfig, log *slog.Logger) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is empty", core.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	b := &GeminiBackend{client: cl, cfg: cfg, log: log.With("component", "gemini_backend", "model", cfg.Model)}
	if cfg.RequestsPerMinute > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), 1)
	}
	return b, nil
}

func (b *GeminiBackend) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

// Prepare uploads the document and waits for the file to become usable.
func (b *GeminiBackend) Prepare(ctx context.Context, doc *core.Document) (core.PageExtractor, error) {
	if doc == nil || len(doc.Data) == 0 {
		return nil, core.NewPermanent(errors.New("empty document"))
	}
	mime := doc.ContentType
	if mime == "" {
		mime = "application/pdf"
	}

	f, err := b.client.UploadFile(ctx, "", bytes.NewReader(doc.Data), &genai.UploadFileOptions{
		DisplayName: doc.Name,
		MIMEType:    mime,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("upload %s: %w", doc.Name, classifyGeminiError(err))
	}
	b.log.Info("file uploaded", "document", doc.Name, "file", f.Name, "bytes", len(doc.Data))

	for f.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			b.deleteFile(f.Name)
			return nil, ctx.Err()
		case <-time.After(b.cfg.PollInterval):
		}
		polled, err := b.client.GetFile(ctx, f.Name)
		if err != nil {
			b.deleteFile(f.Name)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("poll file: %w", classifyGeminiError(err))
		}
		f = polled
	}
	if f.State == genai.FileStateFailed {
		b.deleteFile(f.Name)
		return nil, core.NewPermanent(fmt.Errorf("file %s failed server-side processing", f.Name))
	}

	return &geminiPages{b: b, file: f}, nil
}

func (b *GeminiBackend) deleteFile(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := b.client.DeleteFile(ctx, name); err != nil {
		b.log.Warn("delete uploaded file", "file", name, "err", err)
	}
}

// geminiPages is an uploaded document bound to the extraction prompt.
type geminiPages struct {
	b    *GeminiBackend
	file *genai.File
}

func (p *geminiPages) ExtractPages(ctx context.Context, r core.PageRange) (string, error) {
	if p.b.limiter != nil {
		if err := p.b.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", core.NewTransport(fmt.Errorf("rate limiter: %w", err))
		}
	}

	cctx, cancel := context.WithTimeout(ctx, p.b.cfg.RequestTimeout)
	defer cancel()

	m := p.b.client.GenerativeModel(p.b.cfg.Model)
	m.SetTemperature(0)

	resp, err := m.GenerateContent(cctx,
		genai.FileData{MIMEType: p.file.MIMEType, URI: p.file.URI},
		genai.Text(pagePrompt(r, p.b.cfg.Language)),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%s: %w", r, classifyGeminiError(err))
	}
	return responseText(resp), nil
}

// Close deletes the uploaded file.
func (p *geminiPages) Close() error {
	p.b.deleteFile(p.file.Name)
	return nil
}

// pagePrompt asks for the verbatim text of exactly one page range. An empty
// answer means the pages do not exist.
func pagePrompt(r core.PageRange, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract all text from pages %d to %d of this PDF document. ", r.Start, r.End)
	b.WriteString("Return ONLY the text content from those specific pages")
	if language != "" {
		fmt.Fprintf(&b, ", preserving all %s text exactly as it appears", language)
	} else {
		b.WriteString(", preserving the text exactly as it appears")
	}
	b.WriteString(". If these pages don't exist, return an empty response.")
	return b.String()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}
