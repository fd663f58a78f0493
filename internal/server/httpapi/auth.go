package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vmartynov/offsync/internal/common"
)

// credentialsRequest is the JSON payload for registration and login.
type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register handles account creation. It expects a JSON body with non-empty
// "login" and "password" fields.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	_, err := h.users.Register(r.Context(), req.Login, req.Password)
	switch {
	case errors.Is(err, common.ErrInvalidLoginPassword):
		http.Error(w, "login and password required", http.StatusBadRequest)
	case errors.Is(err, common.ErrLoginAlreadyExists):
		http.Error(w, "login already exists", http.StatusConflict)
	case err != nil:
		h.log.Error(r.Context(), "registration failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

// Login verifies credentials and returns a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	token, err := h.users.Login(r.Context(), req.Login, req.Password)
	switch {
	case errors.Is(err, common.ErrorUnauthorized):
		http.Error(w, "invalid login or password", http.StatusUnauthorized)
	case err != nil:
		h.log.Error(r.Context(), "login failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

// Ping reports liveness; clients probe it to flip between online and offline
// modes.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
