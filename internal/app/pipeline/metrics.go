package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Generations  *prometheus.CounterVec
	SynthSeconds prometheus.Histogram
	BatchRunning prometheus.Gauge
	BatchPending prometheus.Gauge
}

var metrics = &Metrics{
	Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "banter",
		Subsystem: "generation",
		Name:      "utterances_total",
		Help:      "Finished utterance generations by result",
	}, []string{"result"}),
	SynthSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "banter",
		Subsystem: "generation",
		Name:      "synth_request_seconds",
		Help:      "Duration of synthesis gateway calls",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
	}),
	BatchRunning: prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "banter",
		Subsystem: "generation",
		Name:      "batch_running",
		Help:      "1 while a batch generation is in progress",
	}),
	BatchPending: prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "banter",
		Subsystem: "generation",
		Name:      "batch_pending_count",
		Help:      "Utterances left in the running batch",
	}),
}

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(metrics.Generations)
	reg.MustRegister(metrics.SynthSeconds)
	reg.MustRegister(metrics.BatchRunning)
	reg.MustRegister(metrics.BatchPending)
}
