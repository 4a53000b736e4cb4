package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const denyQuery = "data.geotrack.fix_acceptance.deny"

// DefaultMaxFutureSkew bounds how far ahead of the server clock a fix may be stamped.
const DefaultMaxFutureSkew = 24 * time.Hour

// defaultRegoPolicy rejects out-of-range coordinates, fixes from inactive devices,
// and fixes stamped too far in the future.
const defaultRegoPolicy = `package geotrack.fix_acceptance

deny contains "device_id is required" if input.device_id == ""

deny contains "lat must be between -90 and 90" if input.lat < -90

deny contains "lat must be between -90 and 90" if input.lat > 90

deny contains "lon must be between -180 and 180" if input.lon < -180

deny contains "lon must be between -180 and 180" if input.lon > 180

deny contains "device is inactive" if input.device_status == "inactive"

deny contains "timestamp is too far in the future" if {
	input.timestamp_unix - input.now_unix > input.max_future_skew_seconds
}
`

// OPAEvaluator evaluates the fix acceptance policy with an in-process OPA engine.
// The policy is compiled once and the prepared query is reused for every fix.
type OPAEvaluator struct {
	query   rego.PreparedEvalQuery
	maxSkew time.Duration
	nowF    func() time.Time
}

// NewOPAEvaluator compiles the fix acceptance policy. maxSkew <= 0 uses DefaultMaxFutureSkew.
func NewOPAEvaluator(ctx context.Context, maxSkew time.Duration) (*OPAEvaluator, error) {
	if maxSkew <= 0 {
		maxSkew = DefaultMaxFutureSkew
	}
	compiler, err := compileDefault()
	if err != nil {
		return nil, err
	}
	pq, err := rego.New(
		rego.Query(denyQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare fix policy: %w", err)
	}
	return &OPAEvaluator{
		query:   pq,
		maxSkew: maxSkew,
		nowF:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func compileDefault() (*ast.Compiler, error) {
	compiler, err := ast.CompileModules(map[string]string{"fix_acceptance.rego": defaultRegoPolicy})
	if err != nil {
		return nil, fmt.Errorf("compile fix policy: %w", err)
	}
	return compiler, nil
}

// EvaluateFix returns the policy decision for in. Non-finite coordinates are rejected
// before the policy runs since they cannot be represented as policy input.
func (e *OPAEvaluator) EvaluateFix(ctx context.Context, in FixInput) (Decision, error) {
	if !isFinite(in.Lat) || !isFinite(in.Lon) {
		return Decision{Allowed: false, Reasons: []string{"coordinates must be finite numbers"}}, nil
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(e.buildInput(in)))
	if err != nil {
		return Decision{}, fmt.Errorf("eval fix policy: %w", err)
	}
	reasons, err := denyReasons(rs)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: len(reasons) == 0, Reasons: reasons}, nil
}

// HealthCheck verifies that the OPA engine can compile and evaluate the policy for a
// known-good fix. Does not touch the database. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	if _, err := compileDefault(); err != nil {
		return err
	}
	d, err := e.EvaluateFix(ctx, FixInput{DeviceID: "health-check", Lat: 0, Lon: 0, Timestamp: e.nowF()})
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("fix policy rejected a valid fix: %v", d.Reasons)
	}
	return nil
}

func (e *OPAEvaluator) buildInput(in FixInput) map[string]interface{} {
	return map[string]interface{}{
		"device_id":               in.DeviceID,
		"lat":                     in.Lat,
		"lon":                     in.Lon,
		"device_status":           in.DeviceStatus,
		"timestamp_unix":          in.Timestamp.Unix(),
		"now_unix":                e.nowF().Unix(),
		"max_future_skew_seconds": int64(e.maxSkew / time.Second),
	}
}

func denyReasons(rs rego.ResultSet) ([]string, error) {
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}
	set, ok := rs[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("fix policy returned %T, want set", rs[0].Expressions[0].Value)
	}
	reasons := make([]string, 0, len(set))
	for _, v := range set {
		if s, ok := v.(string); ok {
			reasons = append(reasons, s)
		}
	}
	sort.Strings(reasons)
	return reasons, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
