package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RPCMetrics tracks JSON-RPC traffic.
type RPCMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttled *prometheus.CounterVec
}

var (
	rpcOnce     sync.Once
	rpcRegistry *RPCMetrics
)

// RPC returns the process-wide RPC metrics.
func RPC() *RPCMetrics {
	rpcOnce.Do(func() {
		rpcRegistry = &RPCMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "crowdfund_rpc_requests_total",
				Help: "JSON-RPC requests by module, method and HTTP status.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "crowdfund_rpc_request_duration_seconds",
				Help:    "JSON-RPC handler latency.",
				Buckets: prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "crowdfund_rpc_throttled_total",
				Help: "Requests refused by a throttling policy.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.latency,
			rpcRegistry.throttled,
		)
	})
	return rpcRegistry
}

// Observe records one request. A zero status means nothing was written and is
// counted as 200.
func (m *RPCMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if status == 0 {
		status = 200
	}
	m.requests.WithLabelValues(label(module), label(method), strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(label(module), label(method)).Observe(duration.Seconds())
}

func (m *RPCMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	m.throttled.WithLabelValues(label(module), label(reason)).Inc()
}
