package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Requests         *prometheus.CounterVec
	WebSocketClients prometheus.Gauge
	DroppedEvents    prometheus.Counter
}

var metrics = &Metrics{
	Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "banter",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "API requests by method, route and status class",
	}, []string{"method", "route", "status"}),
	WebSocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "banter",
		Subsystem: "api",
		Name:      "websocket_clients",
		Help:      "Connected websocket clients",
	}),
	DroppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "banter",
		Subsystem: "api",
		Name:      "dropped_events_total",
		Help:      "Events not delivered to slow websocket clients",
	}),
}

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(metrics.Requests)
	reg.MustRegister(metrics.WebSocketClients)
	reg.MustRegister(metrics.DroppedEvents)
}
