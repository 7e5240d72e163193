package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request handling time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Number of active signaling websocket connections",
		},
	)

	activeRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "signaling_active_rooms",
			Help: "Number of rooms with at least one member",
		},
	)

	joinsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signaling_joins_total",
			Help: "Total number of accepted room joins",
		},
	)

	rejectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signaling_rejects_total",
			Help: "Total number of joins rejected because the room was full",
		},
	)

	relayedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signaling_relayed_messages_total",
			Help: "Total number of signaling messages relayed between peers",
		},
		[]string{"intent"},
	)
)

// RecordHTTPMetrics records counters and latency for one HTTP request.
func RecordHTTPMetrics(method, endpoint string, status int, duration time.Duration) {
	strStatus := strconv.Itoa(status)

	httpRequestsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, strStatus).Observe(duration.Seconds())
}

func IncrementWSActiveConnections() {
	wsActiveConnections.Inc()
}

func DecrementWSActiveConnections() {
	wsActiveConnections.Dec()
}

func SetActiveRooms(count int) {
	activeRooms.Set(float64(count))
}

func IncrementJoins() {
	joinsTotal.Inc()
}

func IncrementRejects() {
	rejectsTotal.Inc()
}

func IncrementRelayed(intent string) {
	relayedTotal.WithLabelValues(intent).Inc()
}
