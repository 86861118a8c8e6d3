package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/markdave123-py/pagetext/internal/core"
	"github.com/markdave123-py/pagetext/internal/logging"
)

// filesAPI serves the upload, get and delete calls of the Files API. The
// first GET reports PROCESSING and later ones fail with 404.
type filesAPI struct {
	mu      sync.Mutex
	gets    int
	deleted []string
}

func (f *filesAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	io.Copy(io.Discard, r.Body)
	w.Header().Set("Content-Type", "application/json")

	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/upload/v1beta/files":
		io.WriteString(w, `{"file":{"name":"files/scan-1","mimeType":"application/pdf","state":"PROCESSING"}}`)
	case r.Method == http.MethodGet && r.URL.Path == "/v1beta/files/scan-1":
		f.gets++
		if f.gets == 1 {
			io.WriteString(w, `{"name":"files/scan-1","mimeType":"application/pdf","state":"PROCESSING"}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"code":404,"message":"file vanished","status":"NOT_FOUND"}}`)
	case r.Method == http.MethodDelete && r.URL.Path == "/v1beta/files/scan-1":
		f.deleted = append(f.deleted, "files/scan-1")
		io.WriteString(w, `{}`)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func TestGeminiBackend_PrepareDeletesUploadWhenPollFails(t *testing.T) {
	api := &filesAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	ctx := context.Background()
	b, err := NewGeminiBackend(ctx, GeminiBackendConfig{
		APIKey:       "test-key",
		PollInterval: time.Millisecond,
		Endpoint:     srv.URL,
	}, logging.Discard())
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	defer b.Close()

	ext, err := b.Prepare(ctx, &core.Document{Name: "scan.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")})
	if err == nil {
		t.Fatalf("expected poll failure, got extractor %T", ext)
	}
	if core.KindOf(err) != core.KindPermanent {
		t.Fatalf("kind=%v want permanent (err=%v)", core.KindOf(err), err)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.deleted) != 1 {
		t.Fatalf("deleted=%v want the uploaded file removed", api.deleted)
	}
}
