// Package metrics defines Prometheus metrics for the back-office server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backoffice_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_mutations_total",
			Help: "Total audited mutations by entity and action",
		},
		[]string{"entity", "action"},
	)

	AuditEntriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "backoffice_audit_entries_total",
			Help: "Total audit log entries written",
		},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "backoffice_websocket_connections",
			Help: "Active WebSocket connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		MutationsTotal, AuditEntriesTotal, WSConnections,
	)
}
