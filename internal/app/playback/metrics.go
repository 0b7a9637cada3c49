package playback

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Clips   *prometheus.CounterVec
	Playing prometheus.Gauge
}

var metrics = &Metrics{
	Clips: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "banter",
		Subsystem: "playback",
		Name:      "clips_total",
		Help:      "Clips handled by the sequencer by result",
	}, []string{"result"}),
	Playing: prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "banter",
		Subsystem: "playback",
		Name:      "playing",
		Help:      "1 while the sequencer is playing",
	}),
}

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(metrics.Clips)
	reg.MustRegister(metrics.Playing)
}
