package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the engine's Prometheus collectors on a private registry.
type Registry struct {
	reg *prometheus.Registry

	Closes         *prometheus.CounterVec
	CloseDuration  *prometheus.HistogramVec
	Anomalies      *prometheus.CounterVec
	StalePositions *prometheus.CounterVec
	InterestPosted *prometheus.CounterVec
	LastCloseDate  *prometheus.GaugeVec
}

// New creates a Registry with every collector registered.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Closes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navledger_closes_total",
				Help: "Daily closes by portfolio and result",
			},
			[]string{"portfolio", "result"},
		),

		CloseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "navledger_close_duration_seconds",
				Help:    "Duration of one portfolio daily close in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"portfolio"},
		),

		Anomalies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navledger_anomalies_total",
				Help: "Data anomalies skipped during replay and accrual",
			},
			[]string{"portfolio", "kind"},
		),

		StalePositions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navledger_stale_positions_total",
				Help: "Positions valued at a carried-forward or missing price",
			},
			[]string{"portfolio", "ticker"},
		),

		InterestPosted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navledger_interest_postings_total",
				Help: "Interest accrual outcomes by status",
			},
			[]string{"portfolio", "status"},
		),

		LastCloseDate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "navledger_last_close_timestamp_seconds",
				Help: "Unix time of the most recent closed business date",
			},
			[]string{"portfolio"},
		),
	}

	r.reg.MustRegister(
		r.Closes,
		r.CloseDuration,
		r.Anomalies,
		r.StalePositions,
		r.InterestPosted,
		r.LastCloseDate,
		collectors.NewGoCollector(),
	)
	return r
}

// ObserveClose records one finished portfolio close.
func (r *Registry) ObserveClose(portfolio string, day time.Time, took time.Duration, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.Closes.WithLabelValues(portfolio, result).Inc()
	r.CloseDuration.WithLabelValues(portfolio).Observe(took.Seconds())
	if err == nil {
		r.LastCloseDate.WithLabelValues(portfolio).Set(float64(day.Unix()))
	}
}

func (r *Registry) ObserveAnomaly(portfolio, kind string) {
	if r == nil {
		return
	}
	r.Anomalies.WithLabelValues(portfolio, kind).Inc()
}

func (r *Registry) ObserveStale(portfolio string, tickers []string) {
	if r == nil {
		return
	}
	for _, t := range tickers {
		r.StalePositions.WithLabelValues(portfolio, t).Inc()
	}
}

func (r *Registry) ObserveAccrual(portfolio, status string) {
	if r == nil {
		return
	}
	r.InterestPosted.WithLabelValues(portfolio, status).Inc()
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
