package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wardenlabs/tokenward"
)

type fakeSource struct {
	snapshot tokenward.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() tokenward.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AlertsDropped() uint64                      { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: tokenward.MetricsSnapshot{
			Counters:   map[tokenward.MetricID]uint64{},
			Histograms: map[tokenward.MetricID][]uint64{},
		},
		dropped: 0,
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: tokenward.MetricsSnapshot{
			Counters: map[tokenward.MetricID]uint64{
				tokenward.MetricValidateSuccess: 7,
				tokenward.MetricReplayDetected:  2,
			},
			Histograms: map[tokenward.MetricID][]uint64{
				tokenward.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "tokenward_validate_success_total 7") {
		t.Fatalf("expected validate_success counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "tokenward_replay_detected_total 2") {
		t.Fatalf("expected replay_detected counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "tokenward_validate_latency_seconds_bucket{le=\"0.005\"} 1") {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "tokenward_validate_latency_seconds_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected +Inf cumulative bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "tokenward_alerts_dropped_total 2") {
		t.Fatalf("expected alerts dropped counter in output, got:\n%s", out)
	}
}

func TestRenderPadsShortHistogramSlices(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: tokenward.MetricsSnapshot{
			Counters: map[tokenward.MetricID]uint64{},
			Histograms: map[tokenward.MetricID][]uint64{
				tokenward.MetricValidateLatency: {5, 5},
			},
		},
	})

	out := exp.Render()
	if !strings.Contains(out, "tokenward_validate_latency_seconds_bucket{le=\"+Inf\"} 10") {
		t.Fatalf("short slice not padded, got:\n%s", out)
	}
	if !strings.Contains(out, "tokenward_validate_latency_seconds_count 10") {
		t.Fatalf("count mismatch, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: tokenward.MetricsSnapshot{
			Counters:   map[tokenward.MetricID]uint64{tokenward.MetricValidateSuccess: 1},
			Histograms: map[tokenward.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: tokenward.MetricsSnapshot{
			Counters: map[tokenward.MetricID]uint64{
				tokenward.MetricValidateSuccess:  1000,
				tokenward.MetricValidateFailure:  40,
				tokenward.MetricRefreshSuccess:   800,
				tokenward.MetricRefreshFailure:   10,
				tokenward.MetricTokenIssued:      1800,
				tokenward.MetricTokenInvalidated: 20,
				tokenward.MetricReplayDetected:   3,
			},
			Histograms: map[tokenward.MetricID][]uint64{
				tokenward.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
		dropped: 0,
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
