// Package handler serves the dev-only reset PIN lookup. Never mounted in production.
package handler

import (
	"net/http"
	"strings"

	"geotrack/backend/internal/devpin"
	"geotrack/backend/internal/platform/httpx"
)

// PINResponse is the body of GET /dev/pin.
type PINResponse struct {
	Email string `json:"email"`
	PIN   string `json:"pin"`
}

// DevPINHandler serves GET /dev/pin?email=.
type DevPINHandler struct {
	store devpin.Store
}

// NewDevPINHandler returns a handler reading from store.
func NewDevPINHandler(store devpin.Store) *DevPINHandler {
	return &DevPINHandler{store: store}
}

// Get returns the last reset PIN for email, or 404 if none is held.
func (h *DevPINHandler) Get(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("email")))
	if email == "" {
		httpx.WriteError(w, http.StatusBadRequest, "email is required")
		return
	}
	pin, ok := h.store.Get(r.Context(), email)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "No PIN found for this email")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, PINResponse{Email: email, PIN: pin})
}
