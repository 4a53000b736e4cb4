// Package domain holds the GPS fix types.
package domain

import "time"

// MaxListLimit caps how many fixes a single listing returns.
const MaxListLimit = 100

// Fix is one stored GPS position. Fixes are immutable once written.
type Fix struct {
	ID        int64
	DeviceID  string
	Lat       float64
	Lon       float64
	Timestamp time.Time
	Synced    bool
	CreatedAt time.Time
}

// FixInput is a position reported by a device. Identity is the authenticated caller
// that uploaded it and is only used for telemetry.
type FixInput struct {
	DeviceID  string
	Lat       float64
	Lon       float64
	Timestamp time.Time
	Identity  string
}

// BatchResult is the outcome for one item of a batch upload. Exactly one of Fix and Err is set.
type BatchResult struct {
	Index int
	Fix   *Fix
	Err   error
}
