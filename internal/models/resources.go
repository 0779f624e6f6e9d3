package models

import "time"

// ResourceSample uso de recursos de um pod no período coletado.
// Campos nil = valor ausente (query falhou ou pod sem série), nunca zero.
type ResourceSample struct {
	Namespace        string    `json:"namespace"`
	Pod              string    `json:"pod"`
	CPUMillicores    *float64  `json:"cpu_millicores"`
	CPUP95Millicores *float64  `json:"cpu_p95_millicores"`
	MemoryMB         *float64  `json:"memory_mb"`
	NetworkRxKBps    *float64  `json:"network_rx_kb_per_sec"`
	NetworkTxKBps    *float64  `json:"network_tx_kb_per_sec"`
	WindowStart      time.Time `json:"window_start"`
	WindowEnd        time.Time `json:"window_end"`
}

// IngressSample tráfego/latência de um host no ingress controller
type IngressSample struct {
	Host           string   `json:"host"`
	RequestCount   *int64   `json:"request_count"`
	RequestsPerSec *float64 `json:"requests_per_sec"`
	P50Ms          *float64 `json:"p50_ms"`
	P95Ms          *float64 `json:"p95_ms"`
	P99Ms          *float64 `json:"p99_ms"`
}

// QueryFailure query que falhou durante a coleta
type QueryFailure struct {
	Metric string `json:"metric"`
	Error  string `json:"error"`
}

// ResourceMetrics resultado completo de uma coleta
type ResourceMetrics struct {
	CollectedAt   time.Time        `json:"collected_at"`
	WindowSeconds int              `json:"window_seconds"`
	Namespaces    []string         `json:"namespaces"`
	Hosts         []string         `json:"hosts"`
	Pods          []ResourceSample `json:"pods"`
	Ingress       []IngressSample  `json:"ingress"`
	Failures      []QueryFailure   `json:"failures"`
}

// Failed verifica se a métrica falhou na coleta
func (r *ResourceMetrics) Failed(metric string) bool {
	for _, f := range r.Failures {
		if f.Metric == metric {
			return true
		}
	}
	return false
}

// PrometheusHealth representa o status de saúde do Prometheus
type PrometheusHealth struct {
	Endpoint      string
	Timestamp     time.Time
	Healthy       bool
	Version       string
	ActiveTargets int
	Error         string
}
