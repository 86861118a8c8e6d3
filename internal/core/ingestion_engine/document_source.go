package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/pagetext/internal/core"
	objectclient "github.com/markdave123-py/pagetext/internal/core/object-client"
	"github.com/markdave123-py/pagetext/internal/core/pdftext"
)

// DocumentLoader reads a source document from a local path or object storage
// and detects its content type and page count.
type DocumentLoader struct {
	obj core.ObjectClient
	log *slog.Logger
}

// NewDocumentLoader builds a loader. obj may be nil when only local paths are used.
func NewDocumentLoader(obj core.ObjectClient, log *slog.Logger) *DocumentLoader {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &DocumentLoader{obj: obj, log: log.With("component", "document_loader")}
}

// Load fetches location fully into memory. Pages is 0 when the count is unknown.
func (l *DocumentLoader) Load(ctx context.Context, location string) (*core.Document, error) {
	var (
		name string
		data []byte
		err  error
	)

	if bucket, key, ok := objectclient.ParseObjectURL(location); ok {
		if l.obj == nil {
			return nil, fmt.Errorf("%w: %s needs object storage but none is configured", core.ErrInvalidConfig, location)
		}
		name = path.Base(key)
		if data, err = l.obj.GetFile(ctx, bucket, key); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", location, err)
		}
	} else {
		name = filepath.Base(location)
		if data, err = os.ReadFile(location); err != nil {
			return nil, fmt.Errorf("read %s: %w", location, err)
		}
	}
	if len(data) == 0 {
		return nil, core.NewPermanent(errors.New("document is empty"))
	}

	doc := &core.Document{Name: name, ContentType: DetectContentType(name, data), Data: data}
	if pdftext.IsPDF(doc.ContentType, data) {
		doc.ContentType = "application/pdf"
		if n, err := pdftext.CountPages(data); err != nil {
			l.log.Warn("page count unavailable", "document", name, "err", err)
		} else {
			doc.Pages = n
		}
	}

	l.log.Info("document loaded", "document", name, "bytes", len(data), "content_type", doc.ContentType, "pages", doc.Pages)
	return doc, nil
}

// DetectContentType prefers the file extension and falls back to sniffing.
func DetectContentType(name string, data []byte) string {
	if ct := docconv.MimeTypeByExtension(name); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}
