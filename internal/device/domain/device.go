package domain

import "time"

// Device statuses. Inactive devices are refused by the fix acceptance policy.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Sync log statuses.
const (
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// Device is a tracked device, created lazily on its first GPS fix.
type Device struct {
	ID        int64
	DeviceID  string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidStatus reports whether s is a known device status.
func ValidStatus(s string) bool {
	return s == StatusActive || s == StatusInactive
}

// SyncLog is one append-only entry recording the outcome of an ingestion attempt.
type SyncLog struct {
	ID           int64
	DeviceID     string
	Timestamp    time.Time
	Status       string
	ErrorMessage *string
	CreatedAt    time.Time
}

// NewSyncError returns an error entry for deviceID with msg.
func NewSyncError(deviceID, msg string, at time.Time) *SyncLog {
	return &SyncLog{DeviceID: deviceID, Timestamp: at, Status: SyncStatusError, ErrorMessage: &msg}
}

// NewSyncSuccess returns a success entry for deviceID.
func NewSyncSuccess(deviceID string, at time.Time) *SyncLog {
	return &SyncLog{DeviceID: deviceID, Timestamp: at, Status: SyncStatusSuccess}
}
