// Package metrics exposes prometheus collectors for the tuning service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsStarted counts tuning runs by evolution strategy.
	RunsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evolvr_runs_started_total",
		Help: "Tuning runs started, labelled by evolution strategy.",
	}, []string{"strategy"})

	// RunsActive tracks currently running tuning runs.
	RunsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "evolvr_runs_active",
		Help: "Tuning runs currently executing.",
	})

	// Evaluations counts trainer evaluations by outcome.
	Evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evolvr_evaluations_total",
		Help: "Trainer evaluations completed, labelled by outcome.",
	}, []string{"outcome"})

	// BestScore reports the best score seen per run id.
	BestScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "evolvr_run_best_score",
		Help: "Best score recorded for a run.",
	}, []string{"run_id"})
)
