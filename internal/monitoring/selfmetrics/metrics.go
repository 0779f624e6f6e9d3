package selfmetrics

import (
	"context"
	"fmt"

	"k8s-dev-loadtest/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog/log"
)

// JobName job usado no Pushgateway
const JobName = "loadtest"

// Metrics métricas do próprio load test
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeUsers     prometheus.Gauge
	runPassed       prometheus.Gauge

	registry *prometheus.Registry
}

// New cria as métricas em um registry próprio
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadtest_requests_total",
				Help: "Total number of probe requests by endpoint and result",
			},
			[]string{"endpoint", "result"}, // result: success, failure
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loadtest_request_duration_seconds",
				Help:    "Probe latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
			},
			[]string{"endpoint"},
		),

		activeUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loadtest_active_users",
			Help: "Number of running virtual users",
		}),

		runPassed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loadtest_run_passed",
			Help: "Verdict of the last run (1 for pass, 0 for fail)",
		}),

		registry: registry,
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.activeUsers,
		m.runPassed,
	)

	return m
}

// Observe registra um outcome
func (m *Metrics) Observe(outcome models.RequestOutcome) {
	result := "success"
	if !outcome.Success {
		result = "failure"
	}
	m.requestsTotal.WithLabelValues(outcome.Endpoint, result).Inc()
	m.requestDuration.WithLabelValues(outcome.Endpoint).Observe(outcome.LatencyMs / 1000)
}

// SetActiveUsers atualiza o gauge de users ativos
func (m *Metrics) SetActiveUsers(n int) {
	m.activeUsers.Set(float64(n))
}

// SetVerdict registra o veredito final
func (m *Metrics) SetVerdict(v models.Verdict) {
	if v.Passed {
		m.runPassed.Set(1)
		return
	}
	m.runPassed.Set(0)
}

// Registry retorna o registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Push envia as métricas ao Pushgateway agrupadas pelo run ID
func (m *Metrics) Push(ctx context.Context, url, runID string) error {
	pusher := push.New(url, JobName).
		Gatherer(m.registry).
		Grouping("run_id", runID)

	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}

	log.Info().
		Str("pushgateway", url).
		Str("run_id", runID).
		Msg("Metrics pushed")

	return nil
}
