package threshold

import (
	"k8s-dev-loadtest/internal/models"
)

// Evaluate compara as estatísticas agregadas com os limites configurados.
// Uma métrica só viola quando observed > limit (igualdade passa).
// As violações seguem sempre a ordem p95, p99, error-rate.
// Sem amostras os checks de percentil são ignorados.
func Evaluate(overall models.OverallStatistics, cfg models.ThresholdConfig) models.Verdict {
	verdict := models.Verdict{
		Passed:     true,
		Violations: []models.Violation{},
	}

	check := func(metric string, observed, limit float64) {
		if observed > limit {
			verdict.Passed = false
			verdict.Violations = append(verdict.Violations, models.Violation{
				Metric:   metric,
				Observed: observed,
				Limit:    limit,
			})
		}
	}

	if overall.HasSamples() {
		check(models.MetricP95Latency, overall.P95Ms, cfg.P95Ms)
		check(models.MetricP99Latency, overall.P99Ms, cfg.P99Ms)
	}
	check(models.MetricErrorRate, overall.FailureRate, cfg.MaxErrorRate)

	return verdict
}
