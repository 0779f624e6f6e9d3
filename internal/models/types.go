package models

import (
	"time"
)

// Endpoint representa um alvo HTTP do load test
type Endpoint struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Expected  string `json:"expected,omitempty"`  // Substring esperada no body (opcional)
	Namespace string `json:"namespace,omitempty"` // Namespace do serviço (usado pelo collector)
}

// Failure reasons registradas em RequestOutcome.Reason
const (
	ReasonTimeout         = "timeout"
	ReasonConnectionError = "connection_error"
	ReasonContentMismatch = "content_mismatch"
	ReasonBadStatusPrefix = "bad_status:"
)

// RequestOutcome resultado de uma única requisição simulada
type RequestOutcome struct {
	Endpoint  string    `json:"endpoint"`
	Timestamp time.Time `json:"timestamp"`
	LatencyMs float64   `json:"latency_ms"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason,omitempty"`

	// Aborted marca probes interrompidos pelo fim forçado do drain.
	// Não são contabilizados nas estatísticas.
	Aborted bool `json:"-"`
}

// EndpointStatistics estatísticas de um endpoint (ou agregadas)
type EndpointStatistics struct {
	Name           string         `json:"name"`
	RequestCount   int            `json:"request_count"`
	FailureCount   int            `json:"failure_count"`
	FailureRate    float64        `json:"failure_rate_pct"`
	P50Ms          float64        `json:"p50_ms"`
	P95Ms          float64        `json:"p95_ms"`
	P99Ms          float64        `json:"p99_ms"`
	MinMs          float64        `json:"min_ms"`
	MaxMs          float64        `json:"max_ms"`
	MeanMs         float64        `json:"mean_ms"`
	RequestsPerSec float64        `json:"requests_per_sec"`
	Failures       map[string]int `json:"failures,omitempty"` // reason -> count
}

// OverallStatistics tem o mesmo formato de EndpointStatistics, agregado sobre todos os endpoints
type OverallStatistics = EndpointStatistics

// OverallName nome usado na linha agregada dos relatórios
const OverallName = "Aggregated"

// HasSamples indica se há amostras para cálculo de percentis
func (s EndpointStatistics) HasSamples() bool {
	return s.RequestCount > 0
}
