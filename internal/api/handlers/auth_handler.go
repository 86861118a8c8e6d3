package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	middleware "github.com/markdave123-py/pagetext/internal/api/middlewares"
	"github.com/markdave123-py/pagetext/internal/services"
)

type AuthHandler struct {
	users  *services.UserService
	secret []byte
	log    *slog.Logger
}

func NewAuthHandler(users *services.UserService, secret []byte, log *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, secret: secret, log: log.With("component", "auth_handler")}
}

type signupRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	Password  string `json:"password"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	user, err := h.users.Signup(r.Context(), req.Email, req.FirstName, req.Password)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	h.respondWithToken(w, http.StatusCreated, user.ID)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	h.respondWithToken(w, http.StatusOK, user.ID)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, userID string) {
	token, err := middleware.IssueToken(h.secret, userID)
	if err != nil {
		h.log.Error("sign token", "err", err)
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, status, map[string]string{"token": token})
}
