package prometheus

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vhxnguyen/authgate"
)

type fakeSource struct {
	snapshot authgate.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authgate.MetricsSnapshot { return f.snapshot }
func (f *fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestRenderCountersAndHistogram(t *testing.T) {
	source := &fakeSource{
		snapshot: authgate.MetricsSnapshot{
			Counters: map[authgate.MetricID]uint64{
				authgate.MetricLoginSuccess:   3,
				authgate.MetricLoginFailure:   1,
				authgate.MetricSessionCreated: 3,
			},
			Histograms: map[authgate.MetricID][]uint64{
				authgate.MetricValidateLatency: {2, 1, 0, 0, 0, 0, 0, 1},
			},
		},
		dropped: 5,
	}

	out := NewExporterFromSource(source).Render()

	for _, want := range []string{
		"# TYPE authgate_login_success_total counter",
		"authgate_login_success_total 3",
		"authgate_login_failure_total 1",
		"authgate_session_created_total 3",
		"# TYPE authgate_validate_latency_seconds histogram",
		"authgate_validate_latency_seconds_bucket{le=\"0.005\"} 2",
		"authgate_validate_latency_seconds_bucket{le=\"0.01\"} 3",
		"authgate_validate_latency_seconds_bucket{le=\"+Inf\"} 4",
		"authgate_validate_latency_seconds_count 4",
		"authgate_audit_dropped_total 5",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderEmptySource(t *testing.T) {
	out := NewExporterFromSource(&fakeSource{
		snapshot: authgate.MetricsSnapshot{
			Counters:   map[authgate.MetricID]uint64{},
			Histograms: map[authgate.MetricID][]uint64{},
		},
	}).Render()

	if out != "" {
		t.Fatalf("expected empty output for empty snapshot, got:\n%s", out)
	}
}

func TestHandlerContentType(t *testing.T) {
	source := &fakeSource{
		snapshot: authgate.MetricsSnapshot{
			Counters:   map[authgate.MetricID]uint64{authgate.MetricLogout: 1},
			Histograms: map[authgate.MetricID][]uint64{},
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	NewExporterFromSource(source).Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain; version=0.0.4") {
		t.Fatalf("Content-Type = %q", got)
	}
	if !strings.Contains(rec.Body.String(), "authgate_logout_total 1") {
		t.Fatalf("body missing counter:\n%s", rec.Body.String())
	}
}
