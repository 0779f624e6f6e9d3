package analyzer

import (
	"fmt"

	"k8s-dev-loadtest/internal/models"
	"k8s-dev-loadtest/internal/stats"
)

// ComparisonStatus status da comparação baseline vs atual
type ComparisonStatus string

const (
	StatusNormal   ComparisonStatus = "NORMAL"   // Dentro dos limites esperados
	StatusDegraded ComparisonStatus = "DEGRADED" // Degradação detectada mas não crítica
	StatusCritical ComparisonStatus = "CRITICAL" // Degradação crítica detectada
)

// ComparisonResult comparação de um endpoint (ou do agregado) com o baseline
type ComparisonResult struct {
	Name string `json:"name"`

	P95Baseline     float64 `json:"p95_baseline_ms"`
	P95Current      float64 `json:"p95_current_ms"`
	P95DeltaPercent float64 `json:"p95_delta_pct"`

	P99Baseline     float64 `json:"p99_baseline_ms"`
	P99Current      float64 `json:"p99_current_ms"`
	P99DeltaPercent float64 `json:"p99_delta_pct"`

	ErrorRateBaseline float64 `json:"error_rate_baseline_pct"`
	ErrorRateCurrent  float64 `json:"error_rate_current_pct"`
	ErrorRateDelta    float64 `json:"error_rate_delta_pp"` // Pontos percentuais

	Status ComparisonStatus `json:"status"`
	Issues []string         `json:"issues"`
}

// Comparison resultado completo
type Comparison struct {
	BaselineID string             `json:"baseline_id,omitempty"`
	Overall    ComparisonResult   `json:"overall"`
	Endpoints  []ComparisonResult `json:"endpoints"`
	Summary    ComparisonSummary  `json:"summary"`
}

// ComparisonSummary contadores por status (somente endpoints)
type ComparisonSummary struct {
	Normal   int `json:"normal"`
	Degraded int `json:"degraded"`
	Critical int `json:"critical"`
}

func (cs ComparisonSummary) String() string {
	return fmt.Sprintf("Normal: %d | Degraded: %d | Critical: %d", cs.Normal, cs.Degraded, cs.Critical)
}

// ComparatorConfig configuração do comparador
type ComparatorConfig struct {
	LatencyDegradedThreshold float64 // % de aumento de p95/p99 considerado degraded (default: 30%)
	LatencyCriticalThreshold float64 // % de aumento de p95/p99 considerado critical (default: 100%)
	ErrorRateDegradedDelta   float64 // Aumento em pontos percentuais considerado degraded (default: 1)
	ErrorRateCriticalDelta   float64 // Aumento em pontos percentuais considerado critical (default: 5)
}

// DefaultComparatorConfig retorna configuração padrão
func DefaultComparatorConfig() *ComparatorConfig {
	return &ComparatorConfig{
		LatencyDegradedThreshold: 30.0,
		LatencyCriticalThreshold: 100.0,
		ErrorRateDegradedDelta:   1.0,
		ErrorRateCriticalDelta:   5.0,
	}
}

// Comparator compara o resultado atual com um baseline
type Comparator struct {
	baseline   *stats.Summary
	baselineID string
	config     *ComparatorConfig
}

// NewComparator cria novo comparador
func NewComparator(baseline *stats.Summary, baselineID string, config *ComparatorConfig) *Comparator {
	if config == nil {
		config = DefaultComparatorConfig()
	}

	return &Comparator{
		baseline:   baseline,
		baselineID: baselineID,
		config:     config,
	}
}

// Compare compara o agregado e cada endpoint (ordem do resultado atual)
func (c *Comparator) Compare(current *stats.Summary) *Comparison {
	comparison := &Comparison{
		BaselineID: c.baselineID,
		Overall:    c.compare(models.OverallName, c.baseline.Overall, current.Overall),
		Endpoints:  make([]ComparisonResult, 0, len(current.Endpoints)),
	}

	baseline := make(map[string]models.EndpointStatistics, len(c.baseline.Endpoints))
	for _, ep := range c.baseline.Endpoints {
		baseline[ep.Name] = ep
	}

	for _, ep := range current.Endpoints {
		var result ComparisonResult
		if base, ok := baseline[ep.Name]; ok {
			result = c.compare(ep.Name, base, ep)
		} else {
			result = ComparisonResult{
				Name:   ep.Name,
				Status: StatusNormal,
				Issues: []string{"endpoint not present in baseline"},
			}
		}
		comparison.Endpoints = append(comparison.Endpoints, result)

		switch result.Status {
		case StatusCritical:
			comparison.Summary.Critical++
		case StatusDegraded:
			comparison.Summary.Degraded++
		default:
			comparison.Summary.Normal++
		}
	}

	return comparison
}

// compare compara um par de estatísticas
func (c *Comparator) compare(name string, base, cur models.EndpointStatistics) ComparisonResult {
	result := ComparisonResult{
		Name:              name,
		P95Baseline:       base.P95Ms,
		P95Current:        cur.P95Ms,
		P99Baseline:       base.P99Ms,
		P99Current:        cur.P99Ms,
		ErrorRateBaseline: base.FailureRate,
		ErrorRateCurrent:  cur.FailureRate,
		ErrorRateDelta:    stats.Round2(cur.FailureRate - base.FailureRate),
		Issues:            []string{},
	}

	criticalCount := 0
	degradedCount := 0

	// Percentis só comparáveis com amostras dos dois lados
	if base.HasSamples() && cur.HasSamples() {
		result.P95DeltaPercent = deltaPercent(base.P95Ms, cur.P95Ms)
		result.P99DeltaPercent = deltaPercent(base.P99Ms, cur.P99Ms)

		for _, l := range []struct {
			label           string
			delta, from, to float64
		}{
			{"p95", result.P95DeltaPercent, base.P95Ms, cur.P95Ms},
			{"p99", result.P99DeltaPercent, base.P99Ms, cur.P99Ms},
		} {
			switch {
			case l.delta >= c.config.LatencyCriticalThreshold:
				criticalCount++
			case l.delta >= c.config.LatencyDegradedThreshold:
				degradedCount++
			default:
				continue
			}
			result.Issues = append(result.Issues, fmt.Sprintf(
				"%s latency increased %.1f%% (from %.2fms to %.2fms)",
				l.label, l.delta, l.from, l.to,
			))
		}
	}

	switch {
	case result.ErrorRateDelta >= c.config.ErrorRateCriticalDelta:
		criticalCount++
	case result.ErrorRateDelta >= c.config.ErrorRateDegradedDelta:
		degradedCount++
	}
	if result.ErrorRateDelta >= c.config.ErrorRateDegradedDelta {
		result.Issues = append(result.Issues, fmt.Sprintf(
			"error rate increased %.2fpp (from %.2f%% to %.2f%%)",
			result.ErrorRateDelta, base.FailureRate, cur.FailureRate,
		))
	}

	switch {
	case criticalCount > 0:
		result.Status = StatusCritical
	case degradedCount > 0:
		result.Status = StatusDegraded
	default:
		result.Status = StatusNormal
	}

	return result
}

// deltaPercent variação percentual; baseline zero só conta se o atual for positivo
func deltaPercent(base, cur float64) float64 {
	if base <= 0 {
		if cur > 0 {
			return 100
		}
		return 0
	}
	return stats.Round2((cur - base) / base * 100)
}
