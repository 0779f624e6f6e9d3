package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to RunPhase
		want     bool
	}{
		{PhaseConfigured, PhaseRampingUp, true},
		{PhaseRampingUp, PhaseSteady, true},
		{PhaseRampingUp, PhaseDraining, true}, // duração curta pula STEADY
		{PhaseDraining, PhaseAggregated, true},
		{PhaseReported, PhaseDone, true},
		{PhaseConfigured, PhaseFailed, true},
		{PhaseSteady, PhaseFailed, false},
		{PhaseSteady, PhaseRampingUp, false},
		{PhaseSteady, PhaseSteady, false},
		{PhaseDone, PhaseConfigured, false},
		{PhaseFailed, PhaseRampingUp, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, PhaseDone.IsTerminal())
	assert.True(t, PhaseFailed.IsTerminal())
	assert.False(t, PhaseReported.IsTerminal())
	assert.False(t, PhaseConfigured.IsTerminal())
}

func TestVerdictResult(t *testing.T) {
	assert.Equal(t, "PASS", Verdict{Passed: true}.Result())

	v := Verdict{Violations: []Violation{{Metric: MetricP95Latency, Observed: 612.5, Limit: 500}}}
	assert.Equal(t, "FAIL", v.Result())
	assert.Equal(t, "p95_latency_ms 612.50 > 500.00", v.Violations[0].String())
}
