package models

import (
	"fmt"
	"time"
)

// RunPhase fase do pipeline de load test
type RunPhase string

const (
	PhaseConfigured RunPhase = "configured"
	PhaseRampingUp  RunPhase = "ramping_up"
	PhaseSteady     RunPhase = "steady"
	PhaseDraining   RunPhase = "draining"
	PhaseAggregated RunPhase = "aggregated"
	PhaseEvaluated  RunPhase = "evaluated"
	PhaseReported   RunPhase = "reported"
	PhaseDone       RunPhase = "done"
	PhaseFailed     RunPhase = "failed"
)

// phaseOrder ordem válida das transições (FAILED só a partir de CONFIGURED)
var phaseOrder = map[RunPhase]int{
	PhaseConfigured: 0,
	PhaseRampingUp:  1,
	PhaseSteady:     2,
	PhaseDraining:   3,
	PhaseAggregated: 4,
	PhaseEvaluated:  5,
	PhaseReported:   6,
	PhaseDone:       7,
}

// IsTerminal retorna se a fase é terminal
func (p RunPhase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// CanTransition verifica se a transição from -> to é permitida.
// Fases podem ser puladas para frente (ex: duração curta pula STEADY), nunca para trás.
func CanTransition(from, to RunPhase) bool {
	if from.IsTerminal() {
		return false
	}
	if to == PhaseFailed {
		return from == PhaseConfigured
	}
	fi, ok1 := phaseOrder[from]
	ti, ok2 := phaseOrder[to]
	return ok1 && ok2 && ti > fi
}

// ThresholdConfig limites de pass/fail
type ThresholdConfig struct {
	P95Ms        float64 `json:"p95_ms"`
	P99Ms        float64 `json:"p99_ms"`
	MaxErrorRate float64 `json:"max_error_rate_pct"`
}

// DefaultThresholds retorna limites padrão
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		P95Ms:        500,
		P99Ms:        1000,
		MaxErrorRate: 1,
	}
}

// Metric names usados nas violações
const (
	MetricP95Latency = "p95_latency_ms"
	MetricP99Latency = "p99_latency_ms"
	MetricErrorRate  = "error_rate_pct"
)

// Violation uma métrica acima do limite configurado
type Violation struct {
	Metric   string  `json:"metric"`
	Observed float64 `json:"observed"`
	Limit    float64 `json:"limit"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %.2f > %.2f", v.Metric, v.Observed, v.Limit)
}

// Verdict resultado da avaliação de thresholds
type Verdict struct {
	Passed     bool        `json:"passed"`
	Violations []Violation `json:"violations"`
}

// Result retorna PASS/FAIL
func (v Verdict) Result() string {
	if v.Passed {
		return "PASS"
	}
	return "FAIL"
}

// RunSettings parâmetros efetivos de uma execução (snapshot para o relatório)
type RunSettings struct {
	Users      int             `json:"users"`
	SpawnRate  float64         `json:"spawn_rate"`
	Duration   time.Duration   `json:"-"`
	DurationS  float64         `json:"duration_s"`
	Thresholds ThresholdConfig `json:"thresholds"`
	Endpoints  []Endpoint      `json:"endpoints"`
}
