// Package handler exposes GPS ingestion and listing over HTTP.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"geotrack/backend/internal/gps/domain"
	"geotrack/backend/internal/gps/service"
	"geotrack/backend/internal/platform/httpx"
	"geotrack/backend/internal/server/middleware"
)

// GPSService is the subset of service.Service used by the handlers.
type GPSService interface {
	Ingest(ctx context.Context, in domain.FixInput) (*domain.Fix, error)
	IngestBatch(ctx context.Context, inputs []domain.FixInput) ([]domain.BatchResult, error)
	List(ctx context.Context, deviceID string) ([]*domain.Fix, error)
}

// GPSHandler serves /data.
type GPSHandler struct {
	svc GPSService
}

// NewGPSHandler returns a GPSHandler backed by svc.
func NewGPSHandler(svc GPSService) *GPSHandler {
	return &GPSHandler{svc: svc}
}

// FixRequest is the JSON body of one uploaded fix. Lat, Lon and Timestamp are required.
type FixRequest struct {
	DeviceID  string     `json:"device_id"`
	Lat       *float64   `json:"lat"`
	Lon       *float64   `json:"lon"`
	Timestamp *time.Time `json:"timestamp"`
}

type batchRequest struct {
	Fixes []FixRequest `json:"fixes"`
}

// FixResponse echoes a stored fix.
type FixResponse struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
	Synced    bool      `json:"synced"`
	CreatedAt time.Time `json:"created_at"`
}

// BatchItemResponse is the outcome of one batch item.
type BatchItemResponse struct {
	Index int          `json:"index"`
	Fix   *FixResponse `json:"fix,omitempty"`
	Error string       `json:"error,omitempty"`
}

// BatchResponse is the body returned by POST /data/batch.
type BatchResponse struct {
	Results []BatchItemResponse `json:"results"`
}

var errMissingFields = errors.New("device_id, lat, lon and timestamp are required")

// Ingest handles POST /data.
func (h *GPSHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req FixRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	in, err := toInput(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := h.svc.Ingest(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(f))
}

// IngestBatch handles POST /data/batch. Items that fail validation are reported
// in place and not sent to the service.
func (h *GPSHandler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Fixes) == 0 || len(req.Fixes) > service.MaxBatchSize {
		writeError(w, service.ErrInvalidBatch)
		return
	}

	out := BatchResponse{Results: make([]BatchItemResponse, len(req.Fixes))}
	inputs := make([]domain.FixInput, 0, len(req.Fixes))
	positions := make([]int, 0, len(req.Fixes))
	for i, fr := range req.Fixes {
		out.Results[i].Index = i
		in, err := toInput(r.Context(), fr)
		if err != nil {
			out.Results[i].Error = err.Error()
			continue
		}
		inputs = append(inputs, in)
		positions = append(positions, i)
	}

	if len(inputs) > 0 {
		results, err := h.svc.IngestBatch(r.Context(), inputs)
		if err != nil {
			writeError(w, err)
			return
		}
		for j, res := range results {
			item := &out.Results[positions[j]]
			if res.Err != nil {
				item.Error = batchErrorMessage(res.Err)
				continue
			}
			resp := toResponse(res.Fix)
			item.Fix = &resp
		}
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// List handles GET /data?device_id=.
func (h *GPSHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), r.URL.Query().Get("device_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]FixResponse, len(list))
	for i, f := range list {
		out[i] = toResponse(f)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func toInput(ctx context.Context, req FixRequest) (domain.FixInput, error) {
	if req.DeviceID == "" || req.Lat == nil || req.Lon == nil || req.Timestamp == nil {
		return domain.FixInput{}, errMissingFields
	}
	identity, _ := middleware.GetIdentity(ctx)
	return domain.FixInput{
		DeviceID:  req.DeviceID,
		Lat:       *req.Lat,
		Lon:       *req.Lon,
		Timestamp: *req.Timestamp,
		Identity:  identity,
	}, nil
}

func toResponse(f *domain.Fix) FixResponse {
	return FixResponse{
		ID:        f.ID,
		DeviceID:  f.DeviceID,
		Lat:       f.Lat,
		Lon:       f.Lon,
		Timestamp: f.Timestamp,
		Synced:    f.Synced,
		CreatedAt: f.CreatedAt,
	}
}

// batchErrorMessage hides storage details the same way writeError does.
func batchErrorMessage(err error) string {
	if errors.Is(err, service.ErrIngestionFailed) {
		return service.ErrIngestionFailed.Error()
	}
	return err.Error()
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrFixRejected):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrInvalidBatch):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrIngestionFailed):
		log.Printf("gps: %v", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to store GPS data")
	default:
		log.Printf("gps: internal error: %v", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
