package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestCollector_ImplementsInterface(t *testing.T) {
	var _ MetricsCollector = (*Collector)(nil)
}

// findMetric は name のファミリーのうち、ラベルに want を含む最初のメトリクスを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue next
				}
			}
			return m
		}
	}
	t.Fatalf("metric %s%v not found", name, want)
	return nil
}

func TestRecordFeedRequest_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFeedRequest(OutcomeOK, 10*time.Millisecond)
	c.RecordFeedRequest(OutcomeOK, 20*time.Millisecond)
	c.RecordFeedRequest(OutcomeEmpty, time.Millisecond)

	if got := findMetric(t, reg, "stackforum_feed_requests_total", map[string]string{"outcome": "ok"}).GetCounter().GetValue(); got != 2 {
		t.Errorf("ok = %v, want 2", got)
	}
	if got := findMetric(t, reg, "stackforum_feed_latency_seconds", nil).GetHistogram().GetSampleCount(); got != 3 {
		t.Errorf("latency samples = %d, want 3", got)
	}
}

func TestRecordRankingRequest_LabelsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRankingRequest(OutcomeCacheHit, time.Millisecond)
	c.RecordRankingRequest(OutcomeCacheMiss, time.Millisecond)
	c.RecordRankingRequest(OutcomeCacheMiss, time.Millisecond)
	c.RecordRankingRequest(OutcomeError, time.Millisecond)

	tests := []struct {
		outcome string
		want    float64
	}{
		{OutcomeCacheHit, 1},
		{OutcomeCacheMiss, 2},
		{OutcomeError, 1},
	}
	for _, tc := range tests {
		m := findMetric(t, reg, "stackforum_ranking_requests_total", map[string]string{"outcome": tc.outcome})
		if got := m.GetCounter().GetValue(); got != tc.want {
			t.Errorf("%s = %v, want %v", tc.outcome, got, tc.want)
		}
	}
	if got := findMetric(t, reg, "stackforum_ranking_latency_seconds", nil).GetHistogram().GetSampleCount(); got != 4 {
		t.Errorf("latency samples = %d, want 4", got)
	}
}

func TestRecordSocketConnections_TracksGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSocketConnected()
	c.RecordSocketConnected()
	c.RecordSocketDisconnected()

	if got := findMetric(t, reg, "stackforum_socket_connections", nil).GetGauge().GetValue(); got != 1 {
		t.Errorf("sockets = %v, want 1", got)
	}
}

func TestRecordBusCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBusPublished("notificationUpdate")
	c.RecordBusDropped("notificationUpdate")
	c.RecordRelayFailure("redis")
	c.RecordNotificationCreated("answer")
	c.RecordVideoFetchFailure("timeout")

	checks := []struct {
		name   string
		labels map[string]string
	}{
		{"stackforum_bus_published_total", map[string]string{"event": "notificationUpdate"}},
		{"stackforum_bus_dropped_total", map[string]string{"event": "notificationUpdate"}},
		{"stackforum_bus_relay_failures_total", map[string]string{"backend": "redis"}},
		{"stackforum_notifications_created_total", map[string]string{"type": "answer"}},
		{"stackforum_video_fetch_failures_total", map[string]string{"reason": "timeout"}},
	}
	for _, tc := range checks {
		if got := findMetric(t, reg, tc.name, tc.labels).GetCounter().GetValue(); got != 1 {
			t.Errorf("%s = %v, want 1", tc.name, got)
		}
	}
}

func TestRecordHTTPStatus_CountsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(500)
	c.RecordHTTPStatus(200)

	if got := findMetric(t, reg, "stackforum_http_status_total", map[string]string{"status_code": "200"}).GetCounter().GetValue(); got != 2 {
		t.Errorf("200 = %v, want 2", got)
	}
}
