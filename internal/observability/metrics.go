package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IntentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rider", Name: "intents_processed_total", Help: "Intents applied by the ride request state machine"},
		[]string{"intent"},
	)
	StatesPublished  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rider", Name: "state_snapshots_published_total", Help: "Ride request state snapshots published"})
	NavigationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rider", Name: "navigation_events_total", Help: "One-shot navigation events emitted"},
		[]string{"route"},
	)
	CollaboratorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rider", Name: "collaborator_errors_total", Help: "Collaborator failures routed into the error state"},
		[]string{"kind"},
	)
	DriversInRoster = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "rider", Name: "drivers_in_roster", Help: "Drivers currently held in the roster"})

	SimulatorTicks = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rider", Name: "simulator_ticks_total", Help: "Simulated driver movement steps"})
	Arrivals       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rider", Name: "simulator_arrivals_total", Help: "Simulated drivers that reached their target"})
	FaresQuoted    = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rider",
		Name:      "fare_quoted",
		Help:      "Fares quoted at the start of a simulated leg",
		Buckets:   []float64{2.5, 5, 10, 20, 50, 100, 250, 500},
	})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rider", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rider",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
