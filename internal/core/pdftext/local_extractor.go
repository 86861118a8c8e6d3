// Package pdftext extracts page text locally, without a remote model.
// PDFs are read with ledongthuc/pdf; other office formats go through docconv
// and are exposed as a single page.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"

	"github.com/markdave123-py/pagetext/internal/core"
)

const pdfMIME = "application/pdf"

// IsPDF reports whether the document is a PDF, by declared type or magic bytes.
func IsPDF(contentType string, data []byte) bool {
	if strings.HasPrefix(strings.ToLower(contentType), pdfMIME) {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// CountPages returns the page count of an in-memory PDF.
func CountPages(data []byte) (n int, err error) {
	r, err := openPDF(data)
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}

// openPDF parses data, turning parser panics on malformed input into errors.
func openPDF(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("parse pdf: %v", p)
		}
	}()
	if len(data) == 0 {
		return nil, errors.New("parse pdf: empty document")
	}
	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	return r, nil
}

// LocalBackend extracts text on this machine. It never rate-limits and its
// failures are permanent.
type LocalBackend struct {
	log *slog.Logger
}

var _ core.ExtractionBackend = (*LocalBackend)(nil)

func NewLocalBackend(log *slog.Logger) *LocalBackend {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &LocalBackend{log: log.With("component", "local_backend")}
}

func (b *LocalBackend) Prepare(ctx context.Context, doc *core.Document) (core.PageExtractor, error) {
	if doc == nil {
		return nil, core.NewPermanent(errors.New("nil document"))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if IsPDF(doc.ContentType, doc.Data) {
		r, err := openPDF(doc.Data)
		if err != nil {
			return nil, core.NewPermanent(err)
		}
		b.log.Info("pdf opened", "document", doc.Name, "pages", r.NumPage())
		return &pdfPages{r: r}, nil
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(doc.Data)
	}
	res, err := docconv.Convert(bytes.NewReader(doc.Data), contentType, false)
	if err != nil {
		return nil, core.NewPermanent(fmt.Errorf("docconv %s: %w", contentType, err))
	}
	b.log.Info("document converted", "document", doc.Name, "content_type", contentType, "chars", len(res.Body))
	return singlePage(res.Body), nil
}

// pdfPages serves page ranges of one parsed PDF. The parser is not safe for
// concurrent use, so calls are serialized.
type pdfPages struct {
	mu sync.Mutex
	r  *pdf.Reader
}

func (p *pdfPages) ExtractPages(ctx context.Context, rg core.PageRange) (text string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() {
		if v := recover(); v != nil {
			text, err = "", core.NewPermanent(fmt.Errorf("read %s: %v", rg, v))
		}
	}()

	total := p.r.NumPage()
	var parts []string
	for n := rg.Start; n <= rg.End && n <= total; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := p.r.Page(n)
		if page.V.IsNull() {
			continue
		}
		t, err := page.GetPlainText(nil)
		if err != nil {
			return "", core.NewPermanent(fmt.Errorf("read page %d: %w", n, err))
		}
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// singlePage is a converted document whose whole body is page 1.
type singlePage string

func (s singlePage) ExtractPages(ctx context.Context, rg core.PageRange) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if rg.Start > 1 {
		return "", nil
	}
	return strings.TrimSpace(string(s)), nil
}
