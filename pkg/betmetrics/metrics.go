// Package betmetrics provides Prometheus metrics for the betting client.
package betmetrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics collects and exposes client-side betting metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SignInsTotal  *prometheus.CounterVec
	SignOutsTotal prometheus.Counter
	SessionState  *prometheus.GaugeVec

	// API metrics
	APIRequestsTotal *prometheus.CounterVec
	APILatency       *prometheus.HistogramVec

	// Wager metrics
	BetsPlacedTotal      *prometheus.CounterVec
	ValidationFailsTotal *prometheus.CounterVec
	StakeSize            prometheus.Histogram

	// Account metrics
	Balance      prometheus.Gauge
	RefreshTotal *prometheus.CounterVec
}

// New creates a metrics collector on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		SignInsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betsdash_sign_ins_total",
				Help: "Total sign-in attempts",
			},
			[]string{"outcome"},
		),
		SignOutsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "betsdash_sign_outs_total",
				Help: "Total sign-outs",
			},
		),
		SessionState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "betsdash_session_state",
				Help: "Current session state (1 for the active state, 0 otherwise)",
			},
			[]string{"state"},
		),

		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betsdash_api_requests_total",
				Help: "Backend API requests",
			},
			[]string{"endpoint", "outcome"},
		),
		APILatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "betsdash_api_latency_seconds",
				Help:    "Backend API request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),

		BetsPlacedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betsdash_bets_placed_total",
				Help: "Bets submitted to the backend",
			},
			[]string{"kind", "outcome"},
		),
		ValidationFailsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betsdash_validation_failures_total",
				Help: "Client-side wager validation failures",
			},
			[]string{"reason"},
		),
		StakeSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "betsdash_stake_size",
				Help:    "Stake size of submitted bets",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),

		Balance: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "betsdash_balance",
				Help: "Last observed account balance",
			},
		),
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betsdash_refreshes_total",
				Help: "Session refresh attempts",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		m.SignInsTotal,
		m.SignOutsTotal,
		m.SessionState,
		m.APIRequestsTotal,
		m.APILatency,
		m.BetsPlacedTotal,
		m.ValidationFailsTotal,
		m.StakeSize,
		m.Balance,
		m.RefreshTotal,
	)

	return m
}

// Handler returns an HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSignIn records a sign-in attempt outcome ("ok" or "error").
func (m *Metrics) RecordSignIn(outcome string) {
	m.SignInsTotal.WithLabelValues(outcome).Inc()
}

// RecordAPIRequest records one backend request.
func (m *Metrics) RecordAPIRequest(endpoint, outcome string, elapsed time.Duration) {
	m.APIRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	m.APILatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// RecordBet records a submitted bet.
func (m *Metrics) RecordBet(kind, outcome string, stake decimal.Decimal) {
	m.BetsPlacedTotal.WithLabelValues(kind, outcome).Inc()
	if outcome == "ok" {
		m.StakeSize.Observe(stake.InexactFloat64())
	}
}

// SetSessionState flags the current state gauge.
func (m *Metrics) SetSessionState(state string, states []string) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1.0
		}
		m.SessionState.WithLabelValues(s).Set(v)
	}
}

// SetBalance publishes the last observed balance.
func (m *Metrics) SetBalance(balance decimal.Decimal) {
	m.Balance.Set(balance.InexactFloat64())
}
