package handler

import (
	"log"
	"net/http"

	"geotrack/backend/internal/platform/httpx"
)

// StatusResponse is the body of /health and /ready.
type StatusResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// HTTPHandler serves /health and /ready.
type HTTPHandler struct {
	checker *Checker
}

// NewHTTPHandler returns an HTTPHandler using checker for readiness.
func NewHTTPHandler(checker *Checker) *HTTPHandler {
	return &HTTPHandler{checker: checker}
}

// Live handles GET /health. It never touches dependencies.
func (h *HTTPHandler) Live(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, StatusResponse{Status: "healthy"})
}

// Ready handles GET /ready: 200 when all checks pass, 503 otherwise.
func (h *HTTPHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.checker.Check(r.Context()); err != nil {
		log.Printf("health: not ready: %v", err)
		httpx.WriteJSON(w, http.StatusServiceUnavailable, StatusResponse{Status: "unavailable", Detail: err.Error()})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, StatusResponse{Status: "ready"})
}
