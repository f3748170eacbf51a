package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments of the reconstruction service.
type Metrics struct {
	StepsTotal    prometheus.Counter
	AcceptedTotal prometheus.Counter
	RejectedTotal prometheus.Counter
	ActiveRuns    prometheus.Gauge
	RunsTotal     *prometheus.CounterVec
	CurrentCost   *prometheus.GaugeVec
}

// NewMetrics registers the service metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "kiln_annealing_steps_total",
			Help: "Total annealing steps performed across all runs.",
		}),
		AcceptedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "kiln_annealing_accepted_total",
			Help: "Total uphill proposals accepted by the Metropolis draw.",
		}),
		RejectedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "kiln_annealing_rejected_total",
			Help: "Total uphill proposals rejected and rolled back.",
		}),
		ActiveRuns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kiln_reconstruction_runs_active",
			Help: "Reconstruction runs currently annealing.",
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kiln_reconstruction_runs_total",
			Help: "Reconstruction runs by terminal status.",
		}, []string{"status"}),
		CurrentCost: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kiln_reconstruction_cost",
			Help: "Most recently sampled cost per run.",
		}, []string{"run_id"}),
	}
}
