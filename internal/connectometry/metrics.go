package connectometry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// iterationsTotal counts accepted iterations by sample ("real", "null")
	iterationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cnt_iterations_total",
		Help: "Permutation iterations accepted by the accumulator",
	}, []string{"sample"})

	tracksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cnt_tracks_total",
		Help: "Streamlines pooled by sample and correlation",
	}, []string{"sample", "correlation"})

	restartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cnt_restarts_total",
		Help: "Epoch restarts with a doubled seed count",
	})

	staleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cnt_stale_results_total",
		Help: "Iteration results discarded because their epoch was retired",
	})

	seedCountGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cnt_seed_count",
		Help: "Seed count of the current epoch",
	})

	progressGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cnt_progress_percent",
		Help: "Progress of the running analysis",
	})
)
