package engine

import (
	"context"
	"math"
	"testing"
	"time"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEvaluator(t *testing.T) *OPAEvaluator {
	t.Helper()
	e, err := NewOPAEvaluator(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	e.nowF = func() time.Time { return testNow }
	return e
}

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	e := newTestEvaluator(t)
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_AcceptsValidFix(t *testing.T) {
	e := newTestEvaluator(t)
	d, err := e.EvaluateFix(context.Background(), FixInput{
		DeviceID:  "dev-1",
		Lat:       48.8566,
		Lon:       2.3522,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("EvaluateFix: %v", err)
	}
	if !d.Allowed || len(d.Reasons) != 0 {
		t.Errorf("decision = %+v, want allowed", d)
	}
}

func TestOPAEvaluator_Boundaries(t *testing.T) {
	e := newTestEvaluator(t)
	testCases := []struct {
		name    string
		in      FixInput
		allowed bool
		reason  string
	}{
		{"lat -90", FixInput{DeviceID: "d", Lat: -90, Lon: 0, Timestamp: testNow}, true, ""},
		{"lat 90 lon 180", FixInput{DeviceID: "d", Lat: 90, Lon: 180, Timestamp: testNow}, true, ""},
		{"lon -180", FixInput{DeviceID: "d", Lat: 0, Lon: -180, Timestamp: testNow}, true, ""},
		{"lat 90.1", FixInput{DeviceID: "d", Lat: 90.1, Lon: 0, Timestamp: testNow}, false, "lat must be between -90 and 90"},
		{"lat -91", FixInput{DeviceID: "d", Lat: -91, Lon: 0, Timestamp: testNow}, false, "lat must be between -90 and 90"},
		{"lon 180.5", FixInput{DeviceID: "d", Lat: 0, Lon: 180.5, Timestamp: testNow}, false, "lon must be between -180 and 180"},
		{"empty device", FixInput{Lat: 0, Lon: 0, Timestamp: testNow}, false, "device_id is required"},
		{"inactive device", FixInput{DeviceID: "d", Timestamp: testNow, DeviceStatus: "inactive"}, false, "device is inactive"},
		{"active device", FixInput{DeviceID: "d", Timestamp: testNow, DeviceStatus: "active"}, true, ""},
		{"future within skew", FixInput{DeviceID: "d", Timestamp: testNow.Add(23 * time.Hour)}, true, ""},
		{"future beyond skew", FixInput{DeviceID: "d", Timestamp: testNow.Add(25 * time.Hour)}, false, "timestamp is too far in the future"},
		{"past is fine", FixInput{DeviceID: "d", Timestamp: testNow.Add(-365 * 24 * time.Hour)}, true, ""},
		{"nan", FixInput{DeviceID: "d", Lat: math.NaN(), Timestamp: testNow}, false, "coordinates must be finite numbers"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := e.EvaluateFix(context.Background(), tc.in)
			if err != nil {
				t.Fatalf("EvaluateFix: %v", err)
			}
			if d.Allowed != tc.allowed {
				t.Fatalf("Allowed = %v, want %v (reasons %v)", d.Allowed, tc.allowed, d.Reasons)
			}
			if tc.reason != "" && (len(d.Reasons) != 1 || d.Reasons[0] != tc.reason) {
				t.Errorf("Reasons = %v, want [%s]", d.Reasons, tc.reason)
			}
		})
	}
}

func TestOPAEvaluator_MultipleReasonsSorted(t *testing.T) {
	e := newTestEvaluator(t)
	d, err := e.EvaluateFix(context.Background(), FixInput{DeviceID: "d", Lat: 100, Lon: 200, Timestamp: testNow, DeviceStatus: "inactive"})
	if err != nil {
		t.Fatalf("EvaluateFix: %v", err)
	}
	want := []string{"device is inactive", "lat must be between -90 and 90", "lon must be between -180 and 180"}
	if len(d.Reasons) != len(want) {
		t.Fatalf("Reasons = %v, want %v", d.Reasons, want)
	}
	for i := range want {
		if d.Reasons[i] != want[i] {
			t.Errorf("Reasons[%d] = %q, want %q", i, d.Reasons[i], want[i])
		}
	}
}

func TestNewOPAEvaluator_DefaultSkew(t *testing.T) {
	e, err := NewOPAEvaluator(context.Background(), 0)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if e.maxSkew != DefaultMaxFutureSkew {
		t.Errorf("maxSkew = %v, want %v", e.maxSkew, DefaultMaxFutureSkew)
	}
}
