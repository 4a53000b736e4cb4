// Package engine decides whether an incoming GPS fix is accepted, using an OPA Rego policy.
package engine

import (
	"context"
	"time"
)

// FixInput is what the fix acceptance policy sees for one fix.
type FixInput struct {
	DeviceID string
	Lat      float64
	Lon      float64
	// Timestamp is the fix time reported by the device.
	Timestamp time.Time
	// DeviceStatus is the registered status, or "" for a device not seen before.
	DeviceStatus string
}

// Decision is the policy outcome. Reasons lists every violated rule, sorted.
type Decision struct {
	Allowed bool
	Reasons []string
}

// Evaluator evaluates the fix acceptance policy.
type Evaluator interface {
	EvaluateFix(ctx context.Context, in FixInput) (Decision, error)
}
