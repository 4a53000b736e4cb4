package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"geotrack/backend/internal/telemetry/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.Event
	emitErr error
	delay   time.Duration
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

func waitForEvents(t *testing.T, m *mockEventEmitter, n int) []*domain.Event {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if ev := m.getEvents(); len(ev) >= n {
			return ev
		}
		time.Sleep(5 * time.Millisecond)
	}
	return m.getEvents()
}

func syncEvent(deviceID string) *domain.Event {
	return &domain.Event{Type: domain.EventTypeSync, DeviceID: deviceID, Status: "success"}
}

func TestEmitSyncAsync_NilEmitter(t *testing.T) {
	// Should not panic
	EmitSyncAsync(context.Background(), nil, syncEvent("dev-1"))
}

func TestEmitSyncAsync_NilEvent(t *testing.T) {
	emitter := &mockEventEmitter{}
	EmitSyncAsync(context.Background(), emitter, nil)
	time.Sleep(10 * time.Millisecond)
	if events := emitter.getEvents(); len(events) != 0 {
		t.Errorf("expected 0 events, got %d", len(events))
	}
}

func TestEmitSyncAsync_SuccessfulEmit(t *testing.T) {
	emitter := &mockEventEmitter{}
	EmitSyncAsync(context.Background(), emitter, syncEvent("dev-1"))

	events := waitForEvents(t, emitter, 1)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].DeviceID != "dev-1" {
		t.Errorf("device_id = %q, want %q", events[0].DeviceID, "dev-1")
	}
}

func TestEmitSyncAsync_IgnoresRequestCancellation(t *testing.T) {
	emitter := &mockEventEmitter{delay: 10 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	EmitSyncAsync(ctx, emitter, syncEvent("dev-1"))

	if events := waitForEvents(t, emitter, 1); len(events) != 1 {
		t.Errorf("expected 1 event after request cancel, got %d", len(events))
	}
}

func TestEmitSyncAsync_ErrorIsNotPropagated(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: context.DeadlineExceeded}
	EmitSyncAsync(context.Background(), emitter, syncEvent("dev-1"))
	if events := waitForEvents(t, emitter, 1); len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}
}

func TestEmitSyncAsync_ConcurrentAccess(t *testing.T) {
	emitter := &mockEventEmitter{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitSyncAsync(context.Background(), emitter, syncEvent("dev-1"))
		}()
	}
	wg.Wait()
	if events := waitForEvents(t, emitter, 10); len(events) != 10 {
		t.Errorf("expected 10 events, got %d", len(events))
	}
}

type ctxKey struct{}

type ctxEmitter struct {
	mockEventEmitter
	mu  sync.Mutex
	val interface{}
}

func (c *ctxEmitter) Emit(ctx context.Context, event *domain.Event) error {
	c.mu.Lock()
	c.val = ctx.Value(ctxKey{})
	c.mu.Unlock()
	return c.mockEventEmitter.Emit(ctx, event)
}

func TestEmitSyncAsync_KeepsContextValues(t *testing.T) {
	emitter := &ctxEmitter{}
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "trace-1"))
	cancel()

	EmitSyncAsync(ctx, emitter, syncEvent("dev-1"))
	if events := waitForEvents(t, &emitter.mockEventEmitter, 1); len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	if emitter.val != "trace-1" {
		t.Errorf("context value = %v, want trace-1", emitter.val)
	}
}

func TestEmitSyncAsync_FillsDefaultsOnCopy(t *testing.T) {
	emitter := &mockEventEmitter{}
	ev := &domain.Event{DeviceID: "dev-1", Status: "success"}
	EmitSyncAsync(context.Background(), emitter, ev)

	events := waitForEvents(t, emitter, 1)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	got := events[0]
	if got.Type != domain.EventTypeSync {
		t.Errorf("Type = %q, want %q", got.Type, domain.EventTypeSync)
	}
	if got.Source != DefaultSource {
		t.Errorf("Source = %q, want %q", got.Source, DefaultSource)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	if got == ev || ev.Type != "" {
		t.Error("caller's event should not be modified")
	}
}

func TestWithSyncDefaults_KeepsExplicitFields(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := withSyncDefaults(domain.Event{Type: "custom", Source: "gps", CreatedAt: at}, time.Now())
	if e.Type != "custom" || e.Source != "gps" || !e.CreatedAt.Equal(at) {
		t.Errorf("withSyncDefaults = %+v, want explicit fields kept", e)
	}
}

func TestMultiEmitter_FansOutAndJoinsErrors(t *testing.T) {
	ok := &mockEventEmitter{}
	failing := &mockEventEmitter{emitErr: errors.New("kafka down")}
	m := MultiEmitter{ok, nil, failing}

	err := m.Emit(context.Background(), syncEvent("dev-1"))
	if err == nil || err.Error() != "kafka down" {
		t.Errorf("Emit err = %v, want kafka down", err)
	}
	if len(ok.getEvents()) != 1 || len(failing.getEvents()) != 1 {
		t.Errorf("every emitter should receive the event: ok=%d failing=%d", len(ok.getEvents()), len(failing.getEvents()))
	}
	if err := (MultiEmitter{}).Emit(context.Background(), syncEvent("dev-1")); err != nil {
		t.Errorf("empty MultiEmitter err = %v, want nil", err)
	}
}
