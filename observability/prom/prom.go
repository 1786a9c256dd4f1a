// Package prom exports bridge dispatch and client call metrics to Prometheus.
package prom

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/broady/bridge/observability"
)

// unknownAPIType labels requests that named no registered API type.
const unknownAPIType = "unknown"

// NewRegistry returns a fresh Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler returns a Prometheus HTTP handler bound to the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// DispatchObserver exports router metrics.
type DispatchObserver struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewDispatchObserver registers dispatch metrics on reg.
func NewDispatchObserver(reg prometheus.Registerer) *DispatchObserver {
	o := &DispatchObserver{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_dispatch_requests_total",
			Help: "API calls received by the router, by API type and result.",
		}, []string{"api_type", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bridge_dispatch_latency_seconds",
			Help:    "Time from receiving an API call to producing its response.",
			Buckets: prometheus.DefBuckets,
		}, []string{"api_type"}),
	}
	reg.MustRegister(o.requests, o.latency)
	return o
}

func (o *DispatchObserver) Dispatch(apiType string, result observability.DispatchResult, d time.Duration) {
	if apiType == "" {
		apiType = unknownAPIType
	}
	o.requests.WithLabelValues(apiType, string(result)).Inc()
	o.latency.WithLabelValues(apiType).Observe(d.Seconds())
}

// CallObserver exports client metrics.
type CallObserver struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewCallObserver registers client call metrics on reg.
func NewCallObserver(reg prometheus.Registerer) *CallObserver {
	o := &CallObserver{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_client_calls_total",
			Help: "API calls performed by the client, by API type and result.",
		}, []string{"api_type", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bridge_client_call_latency_seconds",
			Help:    "Client API call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"api_type"}),
	}
	reg.MustRegister(o.calls, o.latency)
	return o
}

func (o *CallObserver) Call(apiType string, result observability.CallResult, d time.Duration) {
	o.calls.WithLabelValues(apiType, string(result)).Inc()
	o.latency.WithLabelValues(apiType).Observe(d.Seconds())
}
