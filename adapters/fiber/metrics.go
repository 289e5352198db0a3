package fiber

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lborres/farewatch/core"
)

const metricsNamespace = "farewatch"

// Metrics holds the auth counters on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	factory       promauto.Factory
	logins        *prometheus.CounterVec
	signups       *prometheus.CounterVec
	verifications *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		factory:  factory,
		logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "logins_total",
				Help:      "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		signups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "signups_total",
				Help:      "Signup attempts by outcome",
			},
			[]string{"outcome"},
		),
		verifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "session_verifications_total",
				Help:      "Bearer token verifications by result",
			},
			[]string{"result"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Registry exposes the registry so the host can add its own collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) login(outcome string) {
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) signup(outcome string) {
	m.signups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) verification(result string) {
	m.verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) observeCache(stats core.CacheWithStats) {
	m.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "session_cache_hits_total",
		Help:      "Session cache hits",
	}, func() float64 { return float64(stats.Stats().Hits) })

	m.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "session_cache_misses_total",
		Help:      "Session cache misses",
	}, func() float64 { return float64(stats.Stats().Misses) })

	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "session_cache_entries",
		Help:      "Sessions currently cached",
	}, func() float64 { return float64(stats.Stats().Size) })
}
