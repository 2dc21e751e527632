// Package metrics exposes Prometheus instrumentation for scans and
// gateway calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scan outcomes.
const (
	OutcomeSelected    = "selected"
	OutcomeNoCandidate = "no_candidate"
	OutcomeFailed      = "failed"
	OutcomeCancelled   = "cancelled"
)

// Metrics holds all collectors of the application. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ScansTotal        *prometheus.CounterVec
	ScanDuration      prometheus.Histogram
	AddressesScanned  prometheus.Counter
	BalanceFailures   *prometheus.CounterVec
	LastScanTimestamp prometheus.Gauge
	SelectedBalance   prometheus.Gauge

	RPCCallDuration *prometheus.HistogramVec
	RPCCallErrors   *prometheus.CounterVec
}

// New creates a Metrics instance on its own registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tip3_raffle"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ScansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Scan runs by outcome",
		}, []string{"outcome"}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of a full scan run",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		AddressesScanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "addresses_scanned_total",
			Help:      "Addresses whose balance was evaluated",
		}),
		BalanceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_failures_total",
			Help:      "Balance lookups absorbed as zero, by reason",
		}, []string{"reason"}),
		LastScanTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_scan_timestamp_seconds",
			Help:      "Unix time of the last finished scan",
		}),
		SelectedBalance: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "selected_balance",
			Help:      "Approximate token balance of the last selected address",
		}),

		RPCCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_call_duration_seconds",
			Help:      "Gateway JSON-RPC call latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_call_errors_total",
			Help:      "Gateway JSON-RPC calls that returned an error",
		}, []string{"method"}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRPCCall implements blockchain.CallObserver.
func (m *Metrics) ObserveRPCCall(method string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.RPCCallDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	if err != nil {
		m.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// BalanceFailure counts a lookup absorbed as a zero balance.
func (m *Metrics) BalanceFailure(reason string) {
	if m == nil {
		return
	}
	m.BalanceFailures.WithLabelValues(reason).Inc()
}

// AddressScanned counts one evaluated address.
func (m *Metrics) AddressScanned() {
	if m == nil {
		return
	}
	m.AddressesScanned.Inc()
}

// ScanFinished records the outcome and duration of a run.
func (m *Metrics) ScanFinished(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(outcome).Inc()
	m.ScanDuration.Observe(elapsed.Seconds())
	m.LastScanTimestamp.SetToCurrentTime()
}

// Selected records the approximate balance of a drawn address.
func (m *Metrics) Selected(balance float64) {
	if m == nil {
		return
	}
	m.SelectedBalance.Set(balance)
}
