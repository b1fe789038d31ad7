package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamgate",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "streamgate",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)

	StreamedBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamgate",
			Subsystem: "relay",
			Name:      "streamed_bytes_total",
			Help:      "Total bytes relayed to clients",
		},
		[]string{"disposition"},
	)

	UploadsRelayedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "streamgate",
			Subsystem: "ingest",
			Name:      "uploads_relayed_total",
			Help:      "Total objects relayed into the storage channel",
		},
	)

	SessionsDialedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "streamgate",
			Subsystem: "remote",
			Name:      "sessions_dialed_total",
			Help:      "Total remote store sessions dialed",
		},
	)

	RemoteRateLimitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "streamgate",
			Subsystem: "remote",
			Name:      "rate_limits_total",
			Help:      "Total rate-limit responses received from the remote store",
		},
	)

	InboundThrottledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamgate",
			Subsystem: "http",
			Name:      "throttled_total",
			Help:      "Total inbound requests rejected by the request limiter",
		},
		[]string{"class"},
	)
)

func RecordRequest(method, route, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(durationSec)
}
