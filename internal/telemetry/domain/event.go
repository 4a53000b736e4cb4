package domain

import "time"

// EventTypeSync is emitted after each GPS ingestion attempt.
const EventTypeSync = "gps_sync"

// Event is a sync event published to Kafka and OTel logs.
type Event struct {
	Type      string    `json:"event_type"`
	Source    string    `json:"source"`
	Identity  string    `json:"identity,omitempty"`
	DeviceID  string    `json:"device_id"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	FixID     int64     `json:"fix_id,omitempty"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	FixTime   time.Time `json:"fix_time"`
	CreatedAt time.Time `json:"created_at"`
}
