package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"geotrack/backend/internal/telemetry/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewKafkaProducer_DisabledWithoutBrokers(t *testing.T) {
	if p := NewKafkaProducer(nil, "topic"); p != nil {
		t.Error("expected nil producer without brokers")
	}
	if p := NewKafkaProducer([]string{"localhost:9092"}, ""); p != nil {
		t.Error("expected nil producer without topic")
	}
	var p *KafkaProducer
	if err := p.Emit(context.Background(), &domain.Event{}); err != nil {
		t.Errorf("nil producer Emit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil producer Close: %v", err)
	}
}

func TestNewKafkaProducer_ConfiguresWriter(t *testing.T) {
	p := NewKafkaProducer([]string{"localhost:9092"}, "geotrack-sync")
	if p == nil {
		t.Fatal("expected producer")
	}
	w, ok := p.writer.(*kafka.Writer)
	if !ok {
		t.Fatalf("writer type = %T, want *kafka.Writer", p.writer)
	}
	if w.Topic != "geotrack-sync" {
		t.Errorf("Topic = %q, want %q", w.Topic, "geotrack-sync")
	}
	_ = p.Close()
}

func TestKafkaProducer_EmitKeysByDevice(t *testing.T) {
	fw := &fakeWriter{}
	p := &KafkaProducer{writer: fw, topic: "t"}
	ev := &domain.Event{Type: domain.EventTypeSync, DeviceID: "dev-1", Status: "success", Lat: 48.8566, Lon: 2.3522}

	if err := p.Emit(context.Background(), ev); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(fw.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(fw.msgs))
	}
	msg := fw.msgs[0]
	if string(msg.Key) != "dev-1" {
		t.Errorf("Key = %q, want %q", msg.Key, "dev-1")
	}
	var got domain.Event
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got.DeviceID != "dev-1" || got.Lat != 48.8566 || got.Type != domain.EventTypeSync {
		t.Errorf("payload = %+v", got)
	}
}

func TestKafkaProducer_EmitError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker unavailable")}
	p := &KafkaProducer{writer: fw, topic: "t"}
	if err := p.Emit(context.Background(), &domain.Event{DeviceID: "d"}); err == nil {
		t.Error("Emit should return the writer error")
	}
	if err := p.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(nil) = %v, want nil", err)
	}
	_ = p.Close()
	if !fw.closed {
		t.Error("Close should close the writer")
	}
}
