package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	middleware "github.com/markdave123-py/pagetext/internal/api/middlewares"
	"github.com/markdave123-py/pagetext/internal/core"
	"github.com/markdave123-py/pagetext/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors onto status codes.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "run not found")
	case errors.Is(err, services.ErrNotReady), errors.Is(err, services.ErrFinished), errors.Is(err, services.ErrUserExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrNoPassages):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrQueryDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrInvalidUser), errors.Is(err, core.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	case core.KindOf(err) == core.KindRateLimited:
		writeError(w, http.StatusTooManyRequests, "model is rate limited, try again later")
	default:
		log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user_id not found in context")
	}
	return userID, ok
}
