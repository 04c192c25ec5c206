package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	PreviewLookups  *prometheus.CounterVec
	GamesStarted    prometheus.Counter
	GamesFinished   prometheus.Counter
	Guesses         *prometheus.CounterVec
	OpenConnections prometheus.Gauge
}

// NewMetrics registers on its own registry so several servers can live in
// one process (tests).
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"route"}),
		PreviewLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preview_lookups_total",
			Help:      "Preview lookups by finder and outcome",
		}, []string{"finder", "outcome"}),
		GamesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_started_total",
			Help:      "Game sessions started",
		}),
		GamesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Game sessions finished by the player",
		}),
		Guesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guesses_total",
			Help:      "Submitted guesses by result",
		}, []string{"result"}),
		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Open WebSocket game connections",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.PreviewLookups,
		m.GamesStarted,
		m.GamesFinished,
		m.Guesses,
		m.OpenConnections,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePreviewLookup(finder, outcome string) {
	m.PreviewLookups.WithLabelValues(finder, outcome).Inc()
}

func (m *Metrics) GameStarted() {
	m.GamesStarted.Inc()
}

func (m *Metrics) GameFinished() {
	m.GamesFinished.Inc()
}

func (m *Metrics) GuessSubmitted(correct bool) {
	result := "incorrect"
	if correct {
		result = "correct"
	}
	m.Guesses.WithLabelValues(result).Inc()
}

func (m *Metrics) IncConnections() {
	m.OpenConnections.Inc()
}

func (m *Metrics) DecConnections() {
	m.OpenConnections.Dec()
}
