package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/pagetext/internal/services"
)

type QueryHandler struct {
	queries *services.QueryService
	log     *slog.Logger
}

func NewQueryHandler(queries *services.QueryService, log *slog.Logger) *QueryHandler {
	return &QueryHandler{queries: queries, log: log.With("component", "query_handler")}
}

type queryRequest struct {
	Question string `json:"question"`
}

// Query answers a question from the indexed passages of one run.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	ans, err := h.queries.Ask(r.Context(), userID, chi.URLParam(r, "id"), req.Question)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}
