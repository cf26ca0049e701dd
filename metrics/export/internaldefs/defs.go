// Package internaldefs holds the shared metric definitions exporters render
// from. It exists so every export format agrees on metric names, help text,
// and histogram bounds.
package internaldefs

import (
	"github.com/vhxnguyen/authgate"
)

// CounterDef maps one engine counter to its exported name and help text.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// HistogramDef maps one engine histogram to its exported name and help text.
type HistogramDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter the engine records, in exposition order.
var CounterDefs = []CounterDef{
	{ID: authgate.MetricRegisterSuccess, Name: "authgate_register_success_total", Help: "Successful registrations."},
	{ID: authgate.MetricRegisterConflict, Name: "authgate_register_conflict_total", Help: "Registrations rejected as duplicate email."},
	{ID: authgate.MetricLoginSuccess, Name: "authgate_login_success_total", Help: "Successful login attempts."},
	{ID: authgate.MetricLoginFailure, Name: "authgate_login_failure_total", Help: "Failed login attempts."},
	{ID: authgate.MetricLoginRateLimited, Name: "authgate_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: authgate.MetricValidateSuccess, Name: "authgate_validate_success_total", Help: "Access tokens accepted by Validate."},
	{ID: authgate.MetricValidateFailure, Name: "authgate_validate_failure_total", Help: "Access tokens rejected by Validate."},
	{ID: authgate.MetricRefreshSuccess, Name: "authgate_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authgate.MetricRefreshFailure, Name: "authgate_refresh_failure_total", Help: "Rejected refresh attempts, replays included."},
	{ID: authgate.MetricLogout, Name: "authgate_logout_total", Help: "Single-session logout operations."},
	{ID: authgate.MetricLogoutAll, Name: "authgate_logout_all_total", Help: "Logout-all operations."},
	{ID: authgate.MetricSessionCreated, Name: "authgate_session_created_total", Help: "Created sessions."},
	{ID: authgate.MetricSessionRevoked, Name: "authgate_session_revoked_total", Help: "Sessions flipped inactive."},
}

// HistogramDefs lists every histogram the engine records.
var HistogramDefs = []HistogramDef{
	{ID: authgate.MetricValidateLatency, Name: "authgate_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds are the upper bounds of the latency buckets, in seconds,
// as rendered in le labels.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus histograms require.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
