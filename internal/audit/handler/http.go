// Package handler exposes the caller's audit log over HTTP.
package handler

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"geotrack/backend/internal/audit/repository"
	"geotrack/backend/internal/platform/httpx"
	"geotrack/backend/internal/server/middleware"
)

// Listing bounds for GET /audit-logs.
const (
	defaultLimit = 50
	maxLimit     = 100
)

// AuditHandler serves /audit-logs.
type AuditHandler struct {
	repo repository.Repository
}

// NewAuditHandler returns an AuditHandler reading from repo.
func NewAuditHandler(repo repository.Repository) *AuditHandler {
	return &AuditHandler{repo: repo}
}

// AuditLogResponse is the JSON shape of one audit entry.
type AuditLogResponse struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// List handles GET /audit-logs?limit=. Only the caller's own entries are returned, newest first.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httpx.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	list, err := h.repo.ListByIdentity(r.Context(), identity, limit)
	if err != nil {
		log.Printf("audit: list for %q: %v", identity, err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	out := make([]AuditLogResponse, len(list))
	for i, a := range list {
		out[i] = AuditLogResponse{
			ID:        a.ID,
			Identity:  a.Identity,
			Action:    a.Action,
			Resource:  a.Resource,
			IP:        a.IP,
			Metadata:  a.Metadata,
			CreatedAt: a.CreatedAt,
		}
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
