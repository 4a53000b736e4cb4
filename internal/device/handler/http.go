// Package handler exposes the device registry over HTTP.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"geotrack/backend/internal/device/domain"
	"geotrack/backend/internal/device/service"
	"geotrack/backend/internal/platform/httpx"
)

// Registry is the subset of service.Registry used by the handlers.
type Registry interface {
	List(ctx context.Context) ([]*domain.Device, error)
	Get(ctx context.Context, deviceID string) (*domain.Device, error)
	SetStatus(ctx context.Context, deviceID, status string) (*domain.Device, error)
	SyncLogs(ctx context.Context, deviceID string, limit int) ([]*domain.SyncLog, error)
}

// DeviceHandler serves /devices.
type DeviceHandler struct {
	reg Registry
}

// NewDeviceHandler returns a DeviceHandler backed by reg.
func NewDeviceHandler(reg Registry) *DeviceHandler {
	return &DeviceHandler{reg: reg}
}

// DeviceResponse is the JSON shape of a device.
type DeviceResponse struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SyncLogResponse is the JSON shape of a sync log entry.
type SyncLogResponse struct {
	ID           int64     `json:"id"`
	DeviceID     string    `json:"device_id"`
	Timestamp    time.Time `json:"timestamp"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message"`
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// List handles GET /devices.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.reg.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]DeviceResponse, len(list))
	for i, d := range list {
		out[i] = deviceToResponse(d)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// Get handles GET /devices/{device_id}.
func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.reg.Get(r.Context(), chi.URLParam(r, "device_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, deviceToResponse(d))
}

// SetStatus handles PATCH /devices/{device_id} with {"status": "active"|"inactive"}.
func (h *DeviceHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := h.reg.SetStatus(r.Context(), chi.URLParam(r, "device_id"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, deviceToResponse(d))
}

// SyncLogs handles GET /devices/{device_id}/sync-logs?limit=.
func (h *DeviceHandler) SyncLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httpx.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	list, err := h.reg.SyncLogs(r.Context(), chi.URLParam(r, "device_id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]SyncLogResponse, len(list))
	for i, e := range list {
		out[i] = SyncLogResponse{
			ID:           e.ID,
			DeviceID:     e.DeviceID,
			Timestamp:    e.Timestamp,
			Status:       e.Status,
			ErrorMessage: e.ErrorMessage,
		}
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func deviceToResponse(d *domain.Device) DeviceResponse {
	return DeviceResponse{
		ID:        d.ID,
		DeviceID:  d.DeviceID,
		Status:    d.Status,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "Device not found")
	case errors.Is(err, service.ErrInvalidStatus):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("device: internal error: %v", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
