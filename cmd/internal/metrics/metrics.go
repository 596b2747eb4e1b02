// Package metrics owns the Prometheus collectors exported at /metrics.
//
// All recording methods are nil-safe so components can run without metrics in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "swapi"

// Metrics groups the service collectors behind a private registry.
type Metrics struct {
	reg *prometheus.Registry

	rpcCalls      *prometheus.CounterVec
	rpcDuration   *prometheus.HistogramVec
	otpChecks     *prometheus.CounterVec
	notifications *prometheus.CounterVec
	throttled     *prometheus.CounterVec
	sweptRows     prometheus.Counter
}

// New registers the swapi collectors plus the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "RPC calls by method and outcome.",
		}, []string{"method", "outcome"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "RPC call latency by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		otpChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "otp_checks_total",
			Help:      "OTP verification attempts by result.",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "messages_total",
			Help:      "Outbound notifications by result.",
		}, []string{"result"}),
		throttled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "throttled_total",
			Help:      "Calls rejected by the per-IP throttle.",
		}, []string{"method"}),
		sweptRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "challenges_swept_total",
			Help:      "Expired challenges removed by the background sweeper.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.rpcCalls,
		m.rpcDuration,
		m.otpChecks,
		m.notifications,
		m.throttled,
		m.sweptRows,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// ObserveRPC records one dispatched call. outcome is "ok" or the error name.
func (m *Metrics) ObserveRPC(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.rpcCalls.WithLabelValues(method, outcome).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveOTPCheck records a verification attempt.
func (m *Metrics) ObserveOTPCheck(ok bool) {
	if m == nil {
		return
	}
	m.otpChecks.WithLabelValues(result(ok)).Inc()
}

// ObserveNotification records a delivery attempt.
func (m *Metrics) ObserveNotification(ok bool) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result(ok)).Inc()
}

// ObserveThrottled records a throttled call.
func (m *Metrics) ObserveThrottled(method string) {
	if m == nil {
		return
	}
	m.throttled.WithLabelValues(method).Inc()
}

// ObserveSwept adds n swept challenge rows.
func (m *Metrics) ObserveSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptRows.Add(float64(n))
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "fail"
}
