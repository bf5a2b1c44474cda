// Package monitor collects Prometheus metrics for the quoting loop.
package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor holds the quoter's metric set on a private registry.
type Monitor struct {
	registry *prometheus.Registry

	ticksCompleted  prometheus.Counter
	ticksSkipped    *prometheus.CounterVec
	ordersCanceled  prometheus.Counter
	ordersSubmitted *prometheus.CounterVec
	fills           *prometheus.CounterVec

	bidSpreadBps prometheus.Gauge
	askSpreadBps prometheus.Gauge
	invNorm      prometheus.Gauge
	midPrice     prometheus.Gauge
}

// Config names the metric namespace.
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig returns the default namespace.
func DefaultConfig() Config {
	return Config{Namespace: "pmm", Subsystem: "quoter"}
}

// New builds a Monitor with its own registry.
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Monitor{
		registry: reg,
		ticksCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "ticks_completed_total",
			Help: "Full quoting cycles run to completion",
		}),
		ticksSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "ticks_skipped_total",
			Help: "Cycles skipped, by reason",
		}, []string{"reason"}),
		ordersCanceled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "orders_canceled_total",
			Help: "Orders canceled during reconciliation",
		}),
		ordersSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "orders_submitted_total",
			Help: "Orders submitted, by side",
		}, []string{"side"}),
		fills: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "fills_total",
			Help: "Fill notifications received, by side",
		}, []string{"side"}),
		bidSpreadBps: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "bid_spread_bps",
			Help: "Last computed bid spread in basis points",
		}),
		askSpreadBps: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "ask_spread_bps",
			Help: "Last computed ask spread in basis points",
		}),
		invNorm: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "inventory_norm",
			Help: "Normalized inventory in [-1, 1]",
		}),
		midPrice: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "mid_price",
			Help: "Reference mid price of the last cycle",
		}),
	}
}

func (m *Monitor) RecordTickCompleted() { m.ticksCompleted.Inc() }

func (m *Monitor) RecordTickSkipped(reason string) {
	m.ticksSkipped.WithLabelValues(reason).Inc()
}

func (m *Monitor) RecordCancels(n int) {
	if n > 0 {
		m.ordersCanceled.Add(float64(n))
	}
}

func (m *Monitor) RecordSubmission(side string) { m.ordersSubmitted.WithLabelValues(side).Inc() }

func (m *Monitor) RecordFill(side string) { m.fills.WithLabelValues(side).Inc() }

// UpdateSpreads publishes the last status metrics.
func (m *Monitor) UpdateSpreads(bidBps, askBps, invNorm float64) {
	m.bidSpreadBps.Set(bidBps)
	m.askSpreadBps.Set(askBps)
	m.invNorm.Set(invNorm)
}

func (m *Monitor) UpdateMidPrice(mid float64) { m.midPrice.Set(mid) }

// Handler exposes the registry over HTTP.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry, mainly for tests.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
