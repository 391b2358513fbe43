// Package metrics exposes wallet operation counters and latencies in the
// Prometheus text format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mpcwallet"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry     *prometheus.Registry
	operations   *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	rpcRequests  *prometheus.CounterVec
	providerHeld prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Wallet operations by name and outcome kind.",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Wallet operation latency.",
			Buckets:   []float64{.005, .025, .1, .25, 1, 2.5, 10, 30, 120},
		}, []string{"operation"}),
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "JSON-RPC requests by method and error code (0 on success).",
		}, []string{"method", "code"}),
		providerHeld: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "signing_provider_held",
			Help:      "1 while a signing provider is held by the session.",
		}),
	}
	reg.MustRegister(
		m.operations, m.latency, m.rpcRequests, m.providerHeld,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOperation records one finished operation. outcome is "success" or
// a failure kind.
func (m *Metrics) ObserveOperation(operation, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(took.Seconds())
}

func (m *Metrics) ObserveRPC(method string, code int) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

func (m *Metrics) SetProviderHeld(held bool) {
	if m == nil {
		return
	}
	if held {
		m.providerHeld.Set(1)
		return
	}
	m.providerHeld.Set(0)
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
