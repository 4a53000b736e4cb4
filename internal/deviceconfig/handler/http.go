// Package handler exposes the configuration store over HTTP.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"geotrack/backend/internal/deviceconfig/domain"
	"geotrack/backend/internal/deviceconfig/service"
	"geotrack/backend/internal/platform/httpx"
	"geotrack/backend/internal/server/middleware"
)

// ConfigService is the subset of service.Service used by the handlers.
type ConfigService interface {
	Get(ctx context.Context, owner string) (*domain.Configuration, error)
	Update(ctx context.Context, owner string, patch domain.Patch) (*domain.Configuration, error)
}

// ConfigHandler serves /config for the authenticated identity.
type ConfigHandler struct {
	svc ConfigService
}

// NewConfigHandler returns a ConfigHandler backed by svc.
func NewConfigHandler(svc ConfigService) *ConfigHandler {
	return &ConfigHandler{svc: svc}
}

// ConfigResponse is the JSON shape of a configuration.
type ConfigResponse struct {
	XParameter int    `json:"x_parameter"`
	YParameter int    `json:"y_parameter"`
	DeviceID   string `json:"device_id"`
}

// Get handles GET /config.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	c, err := h.svc.Get(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(c))
}

// Update handles PUT and PATCH /config. Both merge only the supplied fields.
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	var patch domain.Patch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := h.svc.Update(r.Context(), owner, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(c))
}

func toResponse(c *domain.Configuration) ConfigResponse {
	return ConfigResponse{XParameter: c.XParameter, YParameter: c.YParameter, DeviceID: c.DeviceID}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidConfig), errors.Is(err, service.ErrOwnerRequired):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("config: internal error: %v", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
