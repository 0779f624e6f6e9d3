package prometheus

import (
	"context"
	"time"

	"k8s-dev-loadtest/internal/models"

	"github.com/rs/zerolog/log"
)

// GetPrometheusVersion obtém a versão do Prometheus
func GetPrometheusVersion(ctx context.Context, client *Client) (string, error) {
	buildInfo, err := client.api.Buildinfo(ctx)
	if err != nil {
		return "", err
	}

	if buildInfo.Version == "" {
		return "unknown", nil
	}
	return buildInfo.Version, nil
}

// GetActiveTargets conta targets ativos configurados no Prometheus
func GetActiveTargets(ctx context.Context, client *Client) (int, error) {
	targets, err := client.api.Targets(ctx)
	if err != nil {
		return 0, err
	}
	return len(targets.Active), nil
}

// CheckPrometheusHealth verifica saúde do Prometheus.
// Backend inacessível não é erro: retorna Healthy=false com a mensagem.
func CheckPrometheusHealth(ctx context.Context, client *Client) *models.PrometheusHealth {
	health := &models.PrometheusHealth{
		Endpoint:  client.Endpoint(),
		Timestamp: time.Now(),
	}

	if err := client.TestConnection(ctx); err != nil {
		health.Error = err.Error()
		log.Warn().
			Err(err).
			Str("endpoint", client.Endpoint()).
			Msg("Prometheus is not reachable")
		return health
	}

	health.Healthy = true

	if version, err := GetPrometheusVersion(ctx, client); err == nil {
		health.Version = version
	}

	if active, err := GetActiveTargets(ctx, client); err == nil {
		health.ActiveTargets = active
	}

	log.Info().
		Str("endpoint", health.Endpoint).
		Bool("healthy", health.Healthy).
		Str("version", health.Version).
		Int("targets", health.ActiveTargets).
		Msg("Prometheus health check complete")

	return health
}
