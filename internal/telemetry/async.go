package telemetry

import (
	"context"
	"log"
	"time"

	"geotrack/backend/internal/telemetry/domain"
)

// DefaultSource tags sync events that do not name their producer.
const DefaultSource = "geotrack-backend"

// emitTimeout bounds a single background sync emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the servers stop before shutting down OTel providers
// and the Kafka writer, so sync events still in flight can finish. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitSyncAsync publishes a copy of ev in the background so ingestion never waits on Kafka or the
// collector. Missing Type, Source and CreatedAt are filled in. The emit keeps ctx values (trace
// spans) but not its cancellation, so a finished request does not abort it. Failures are logged.
func EmitSyncAsync(ctx context.Context, emitter EventEmitter, ev *domain.Event) {
	if emitter == nil || ev == nil {
		return
	}
	e := withSyncDefaults(*ev, time.Now().UTC())
	base := context.WithoutCancel(ctx)
	go func() {
		emitCtx, cancel := context.WithTimeout(base, emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, &e); err != nil {
			log.Printf("telemetry: sync event device=%q status=%s: %v", e.DeviceID, e.Status, err)
		}
	}()
}

func withSyncDefaults(e domain.Event, now time.Time) domain.Event {
	if e.Type == "" {
		e.Type = domain.EventTypeSync
	}
	if e.Source == "" {
		e.Source = DefaultSource
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return e
}
