package collector

import (
	"context"
	"errors"
	"time"

	"k8s-dev-loadtest/internal/models"
	"k8s-dev-loadtest/internal/monitoring/prometheus"

	"github.com/prometheus/common/model"
)

// PrometheusSource verifica o backend e coleta as métricas em uma única chamada
type PrometheusSource struct {
	URL     string
	Timeout time.Duration
	Config  Config

	// Health resultado do último health check
	Health *models.PrometheusHealth
}

// Collect coleta métricas; backend inacessível gera um relatório com todas as
// métricas ausentes e cada query listada em Failures.
func (s *PrometheusSource) Collect(ctx context.Context, namespaces, hosts []string, window time.Duration) *models.ResourceMetrics {
	var api prometheus.QueryAPI

	client, err := prometheus.NewClient(s.URL, s.Timeout)
	if err != nil {
		s.Health = &models.PrometheusHealth{Endpoint: s.URL, Timestamp: time.Now(), Error: err.Error()}
		api = unavailableAPI{err: err}
	} else {
		s.Health = prometheus.CheckPrometheusHealth(ctx, client)
		api = client
		if !s.Health.Healthy {
			api = unavailableAPI{err: errors.New("prometheus unreachable: " + s.Health.Error)}
		}
	}

	return NewResourceCollector(api, s.Config).Collect(ctx, namespaces, hosts, window)
}

// unavailableAPI falha toda query sem tocar a rede
type unavailableAPI struct {
	err error
}

func (u unavailableAPI) InstantQuery(ctx context.Context, expr string) (model.Vector, error) {
	return nil, u.err
}

func (u unavailableAPI) RangeQuery(ctx context.Context, expr string, window, step time.Duration) (model.Matrix, error) {
	return nil, u.err
}
