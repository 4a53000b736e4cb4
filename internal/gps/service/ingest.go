// Package service implements GPS fix ingestion and listing.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	devicedomain "geotrack/backend/internal/device/domain"
	"geotrack/backend/internal/gps/domain"
	"geotrack/backend/internal/gps/repository"
	"geotrack/backend/internal/policy/engine"
	"geotrack/backend/internal/telemetry"
	eventdomain "geotrack/backend/internal/telemetry/domain"
)

// MaxBatchSize is the largest number of fixes accepted in one batch upload.
const MaxBatchSize = 500

const eventSource = "gps-ingest"

// Ingest outcomes recorded on the fixes counter and in sync events.
const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

var (
	ErrFixRejected     = errors.New("fix rejected")
	ErrIngestionFailed = errors.New("failed to store GPS data")
	ErrInvalidBatch    = fmt.Errorf("batch must contain between 1 and %d fixes", MaxBatchSize)
)

// DeviceLookup returns a device by id, or nil if it has not been seen.
type DeviceLookup interface {
	GetByDeviceID(ctx context.Context, deviceID string) (*devicedomain.Device, error)
}

// SyncLogAppender appends sync log entries outside the ingest transaction.
type SyncLogAppender interface {
	Append(ctx context.Context, e *devicedomain.SyncLog) error
}

// Service ingests and lists GPS fixes.
type Service struct {
	store    repository.Store
	devices  DeviceLookup
	syncLogs SyncLogAppender
	policy   engine.Evaluator
	emitter  telemetry.EventEmitter
	fixes    metric.Int64Counter
	nowF     func() time.Time
}

// NewService returns a Service. emitter may be nil to disable sync events.
func NewService(store repository.Store, devices DeviceLookup, syncLogs SyncLogAppender, policy engine.Evaluator, emitter telemetry.EventEmitter) *Service {
	fixes, err := otel.Meter("geotrack/backend/gps").Int64Counter("gps.fixes.ingested",
		metric.WithDescription("GPS fixes processed, by outcome"))
	if err != nil {
		log.Printf("gps: create fixes counter: %v", err)
	}
	return &Service{
		store:    store,
		devices:  devices,
		syncLogs: syncLogs,
		policy:   policy,
		emitter:  emitter,
		fixes:    fixes,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// Ingest checks in against the fix acceptance policy and stores it. A rejected fix
// returns ErrFixRejected and leaves an error sync log. A storage failure returns
// ErrIngestionFailed; nothing from the failed transaction is kept.
func (s *Service) Ingest(ctx context.Context, in domain.FixInput) (*domain.Fix, error) {
	in.DeviceID = strings.TrimSpace(in.DeviceID)

	var status string
	if in.DeviceID != "" {
		dev, err := s.devices.GetByDeviceID(ctx, in.DeviceID)
		if err != nil {
			return nil, s.fail(ctx, in, fmt.Errorf("lookup device: %w", err))
		}
		if dev != nil {
			status = dev.Status
		}
	}

	decision, err := s.policy.EvaluateFix(ctx, engine.FixInput{
		DeviceID:     in.DeviceID,
		Lat:          in.Lat,
		Lon:          in.Lon,
		Timestamp:    in.Timestamp,
		DeviceStatus: status,
	})
	if err != nil {
		return nil, s.fail(ctx, in, err)
	}
	if !decision.Allowed {
		reason := strings.Join(decision.Reasons, "; ")
		s.appendSyncError(ctx, in.DeviceID, "rejected: "+reason)
		s.record(ctx, in, outcomeRejected, reason, nil)
		return nil, fmt.Errorf("%w: %s", ErrFixRejected, reason)
	}

	f := &domain.Fix{
		DeviceID:  in.DeviceID,
		Lat:       in.Lat,
		Lon:       in.Lon,
		Timestamp: in.Timestamp.UTC(),
	}
	if err := s.store.Ingest(ctx, f); err != nil {
		return nil, s.fail(ctx, in, err)
	}
	s.record(ctx, in, outcomeSuccess, "", f)
	return f, nil
}

// IngestBatch ingests each fix independently. One failing item does not affect the others.
func (s *Service) IngestBatch(ctx context.Context, inputs []domain.FixInput) ([]domain.BatchResult, error) {
	if len(inputs) == 0 || len(inputs) > MaxBatchSize {
		return nil, ErrInvalidBatch
	}
	results := make([]domain.BatchResult, len(inputs))
	for i, in := range inputs {
		f, err := s.Ingest(ctx, in)
		results[i] = domain.BatchResult{Index: i, Fix: f, Err: err}
	}
	return results, nil
}

// List returns the newest fixes first, at most domain.MaxListLimit. An empty deviceID lists all devices.
func (s *Service) List(ctx context.Context, deviceID string) ([]*domain.Fix, error) {
	list, err := s.store.List(ctx, strings.TrimSpace(deviceID), domain.MaxListLimit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*domain.Fix{}
	}
	return list, nil
}

func (s *Service) fail(ctx context.Context, in domain.FixInput, cause error) error {
	log.Printf("gps: ingest device=%q failed: %v", in.DeviceID, cause)
	s.appendSyncError(ctx, in.DeviceID, cause.Error())
	s.record(ctx, in, outcomeError, cause.Error(), nil)
	return fmt.Errorf("%w: %v", ErrIngestionFailed, cause)
}

// appendSyncError is best-effort; a failure is logged and never returned.
func (s *Service) appendSyncError(ctx context.Context, deviceID, msg string) {
	if deviceID == "" {
		return
	}
	if err := s.syncLogs.Append(ctx, devicedomain.NewSyncError(deviceID, msg, s.nowF())); err != nil {
		log.Printf("gps: append error sync log device=%q: %v", deviceID, err)
	}
}

func (s *Service) record(ctx context.Context, in domain.FixInput, outcome, errMsg string, f *domain.Fix) {
	if s.fixes != nil {
		s.fixes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	ev := &eventdomain.Event{
		Type:      eventdomain.EventTypeSync,
		Source:    eventSource,
		Identity:  in.Identity,
		DeviceID:  in.DeviceID,
		Status:    outcome,
		Error:     errMsg,
		Lat:       in.Lat,
		Lon:       in.Lon,
		FixTime:   in.Timestamp,
		CreatedAt: s.nowF(),
	}
	if f != nil {
		ev.FixID = f.ID
	}
	telemetry.EmitSyncAsync(ctx, s.emitter, ev)
}
