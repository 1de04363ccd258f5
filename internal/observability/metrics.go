package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RPC outcomes used as the "outcome" label.
const (
	OutcomeOK          = "ok"
	OutcomeFault       = "fault"
	OutcomeMissing     = "missing"
	OutcomeDecodeError = "decode_error"
	OutcomeHTTPError   = "http_error"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xmlrpc",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"server", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "xmlrpc",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"server", "method", "path", "status"},
	)
	rpcCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xmlrpc",
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "Dispatched XML-RPC calls by method and outcome.",
		},
		[]string{"method", "outcome"},
	)
	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "xmlrpc",
			Subsystem: "rpc",
			Name:      "duration_seconds",
			Help:      "XML-RPC handler duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "outcome"},
	)
	clientCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xmlrpc",
			Subsystem: "client",
			Name:      "calls_total",
			Help:      "Outgoing XML-RPC calls by method and outcome.",
		},
		[]string{"method", "outcome"},
	)
	clientDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "xmlrpc",
			Subsystem: "client",
			Name:      "duration_seconds",
			Help:      "Outgoing XML-RPC call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, rpcCalls, rpcDuration, clientCalls, clientDuration)
	})
}

func RecordHTTPRequest(server, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(server, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(server, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordRPC counts one dispatched call on the server side.
func RecordRPC(method, outcome string, duration time.Duration) {
	RegisterMetrics()
	rpcCalls.WithLabelValues(method, outcome).Inc()
	rpcDuration.WithLabelValues(method, outcome).Observe(duration.Seconds())
}

func RecordClientCall(method, outcome string, duration time.Duration) {
	RegisterMetrics()
	clientCalls.WithLabelValues(method, outcome).Inc()
	clientDuration.WithLabelValues(method, outcome).Observe(duration.Seconds())
}
