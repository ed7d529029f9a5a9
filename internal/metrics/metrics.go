// Package metrics はPrometheusメトリクスを収集して公開する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// フィードリクエストの結果。
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// ランキングリクエストの結果。OutcomeError はフィードと共通。
const (
	OutcomeCacheHit  = "hit"
	OutcomeCacheMiss = "miss"
)

// MetricsCollector はサービス、バス、ソケットハブが使う記録用インターフェース。
type MetricsCollector interface {
	RecordFeedRequest(outcome string, duration time.Duration)
	RecordRankingRequest(outcome string, duration time.Duration)
	RecordNotificationCreated(notificationType string)
	RecordBusPublished(event string)
	RecordBusDropped(event string)
	RecordRelayFailure(backend string)
	RecordSocketConnected()
	RecordSocketDisconnected()
	RecordHTTPStatus(statusCode int)
	RecordVideoFetchFailure(reason string)
}

// Collector は MetricsCollector のPrometheus実装。
type Collector struct {
	feedRequests    *prometheus.CounterVec
	feedLatency     prometheus.Histogram
	rankingRequests *prometheus.CounterVec
	rankingLatency  prometheus.Histogram
	notifications   *prometheus.CounterVec
	busPublished    *prometheus.CounterVec
	busDropped      *prometheus.CounterVec
	relayFailures   *prometheus.CounterVec
	sockets         prometheus.Gauge
	httpStatus      *prometheus.CounterVec
	videoFailures   *prometheus.CounterVec
}

// NewCollector は Collector を生成し、メトリクスを reg に登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		feedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stackforum_feed_requests_total",
			Help: "Personalized feed requests by outcome",
		}, []string{"outcome"}),
		feedLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stackforum_feed_latency_seconds",
			Help:    "Personalized feed aggregation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		rankingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stackforum_ranking_requests_total",
			Help: "Leaderboard requests by outcome (hit, miss or error)",
		}, []string{"outcome"}),
		rankingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stackforum_ranking_latency_seconds",
			Help:    "Leaderboard aggregation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stackforum_notifications_created_total",
			Help: "Notifications created by type",
		}, []string{"type"}),
		busPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stackforum_bus_published_total",
			Help: "Events published on the bus by event name",
		}, []string{"event"}),
		busDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stackforum_bus_dropped_total",
			Help: "Events dropped because a subscriber queue was full",
		}, []string{"event"}),
		relayFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stackforum_bus_relay_failures_total",
			Help: "Broker relay publish or decode failures by backend",
		}, []string{"backend"}),
		sockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stackforum_socket_connections",
			Help: "Currently connected socket clients",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stackforum_http_status_total",
			Help: "HTTP responses by status code",
		}, []string{"status_code"}),
		videoFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stackforum_video_fetch_failures_total",
			Help: "Related video lookups that failed by reason",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.feedRequests,
		c.feedLatency,
		c.rankingRequests,
		c.rankingLatency,
		c.notifications,
		c.busPublished,
		c.busDropped,
		c.relayFailures,
		c.sockets,
		c.httpStatus,
		c.videoFailures,
	)

	return c
}

// RecordFeedRequest はフィード集約を1件記録する。
func (c *Collector) RecordFeedRequest(outcome string, duration time.Duration) {
	c.feedRequests.WithLabelValues(outcome).Inc()
	c.feedLatency.Observe(duration.Seconds())
}

// RecordRankingRequest はランキングリクエストを1件記録する。
func (c *Collector) RecordRankingRequest(outcome string, duration time.Duration) {
	c.rankingRequests.WithLabelValues(outcome).Inc()
	c.rankingLatency.Observe(duration.Seconds())
}

func (c *Collector) RecordNotificationCreated(notificationType string) {
	c.notifications.WithLabelValues(notificationType).Inc()
}

func (c *Collector) RecordBusPublished(event string) {
	c.busPublished.WithLabelValues(event).Inc()
}

func (c *Collector) RecordBusDropped(event string) {
	c.busDropped.WithLabelValues(event).Inc()
}

func (c *Collector) RecordRelayFailure(backend string) {
	c.relayFailures.WithLabelValues(backend).Inc()
}

func (c *Collector) RecordSocketConnected() {
	c.sockets.Inc()
}

func (c *Collector) RecordSocketDisconnected() {
	c.sockets.Dec()
}

// RecordHTTPStatus はレスポンスのステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func (c *Collector) RecordVideoFetchFailure(reason string) {
	c.videoFailures.WithLabelValues(reason).Inc()
}

// Handler はPrometheusのスクレイプ用ハンドラを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は /metrics を提供する mux を返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
