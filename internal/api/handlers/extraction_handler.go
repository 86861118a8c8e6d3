package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/pagetext/internal/models"
	"github.com/markdave123-py/pagetext/internal/services"
)

const maxUploadBytes = 52 << 20

type ExtractionHandler struct {
	runs *services.RunService
	log  *slog.Logger
}

func NewExtractionHandler(runs *services.RunService, log *slog.Logger) *ExtractionHandler {
	return &ExtractionHandler{runs: runs, log: log.With("component", "extraction_handler")}
}

// CreateExtraction accepts a multipart upload and queues it for extraction.
// Optional form fields pages_per_chunk and concurrency override the service defaults.
func (h *ExtractionHandler) CreateExtraction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file")
		return
	}
	defer file.Close()

	perChunk, err := formInt(r, "pages_per_chunk")
	if err != nil {
		writeError(w, http.StatusBadRequest, "pages_per_chunk must be an integer")
		return
	}
	concurrency, err := formInt(r, "concurrency")
	if err != nil {
		writeError(w, http.StatusBadRequest, "concurrency must be an integer")
		return
	}

	uploadCtx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	run, err := h.runs.Submit(uploadCtx, services.SubmitRequest{
		UserID:        userID,
		FileName:      header.Filename,
		ContentType:   header.Header.Get("Content-Type"),
		Body:          file,
		PagesPerChunk: perChunk,
		Concurrency:   concurrency,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (h *ExtractionHandler) ListExtractions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	runs, err := h.runs.ListByUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if runs == nil {
		runs = []models.ExtractionRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

type extractionResponse struct {
	*models.ExtractionRun
	Ranges []models.RunChunk `json:"ranges"`
}

// GetExtraction returns the run with its per-range outcomes, without the range text.
func (h *ExtractionHandler) GetExtraction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	run, err := h.runs.Get(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	chunks, err := h.runs.Chunks(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	for i := range chunks {
		chunks[i].Text = ""
	}
	if chunks == nil {
		chunks = []models.RunChunk{}
	}
	writeJSON(w, http.StatusOK, extractionResponse{ExtractionRun: run, Ranges: chunks})
}

// GetExtractionText streams the assembled document text as plain text.
func (h *ExtractionHandler) GetExtractionText(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	text, err := h.runs.Text(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(text))
}

func (h *ExtractionHandler) CancelExtraction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	run, err := h.runs.Cancel(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func formInt(r *http.Request, name string) (int, error) {
	v := r.FormValue(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
