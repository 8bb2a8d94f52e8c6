// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlinePlayers    prometheus.Gauge
	ActiveMatches    prometheus.Gauge
	MatchesCompleted prometheus.Counter
	CommandsReceived prometheus.Counter
	CommandLatency   prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of authenticated sessions",
		}),
		ActiveMatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_matches",
			Help:      "Number of matches in progress",
		}),
		MatchesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_completed_total",
			Help:      "Total number of matches that reached a terminal status",
		}),
		CommandsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_received_total",
			Help:      "Total number of client protocol lines received",
		}),
		CommandLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_latency_seconds",
			Help:      "Lobby command processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}

	prometheus.MustRegister(
		m.OnlinePlayers,
		m.ActiveMatches,
		m.MatchesCompleted,
		m.CommandsReceived,
		m.CommandLatency,
	)

	return m
}

type Monitor struct {
	metrics   *Metrics
	startTime time.Time
}

func NewMonitor(namespace string) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace),
		startTime: time.Now(),
	}
}

func (m *Monitor) StartServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())

	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))

	go http.ListenAndServe(addr, nil)
}

func (m *Monitor) IncOnlinePlayers() {
	m.metrics.OnlinePlayers.Inc()
}

func (m *Monitor) DecOnlinePlayers() {
	m.metrics.OnlinePlayers.Dec()
}

func (m *Monitor) SetActiveMatches(count int) {
	m.metrics.ActiveMatches.Set(float64(count))
}

func (m *Monitor) IncMatchesCompleted() {
	m.metrics.MatchesCompleted.Inc()
}

func (m *Monitor) IncCommandsReceived() {
	m.metrics.CommandsReceived.Inc()
}

func (m *Monitor) ObserveCommandLatency(duration time.Duration) {
	m.metrics.CommandLatency.Observe(duration.Seconds())
}
