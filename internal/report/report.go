package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"k8s-dev-loadtest/internal/analyzer"
	"k8s-dev-loadtest/internal/models"
	"k8s-dev-loadtest/internal/stats"
)

// Nomes dos artefatos gravados em --output-dir
const (
	SummaryJSONFile   = "summary.json"
	SummaryMDFile     = "summary.md"
	StatsCSVFile      = "stats.csv"
	ResourcesJSONFile = "resource_metrics.json"
	ResourcesMDFile   = "resource_metrics.md"
)

// LoadTestReport snapshot completo de uma execução
type LoadTestReport struct {
	RunID       string             `json:"run_id"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	ElapsedS    float64            `json:"elapsed_s"`
	Interrupted bool               `json:"interrupted"`
	LastPhase   models.RunPhase    `json:"last_traffic_phase"` // Última fase de tráfego atingida
	Settings    models.RunSettings `json:"settings"`

	Endpoints []models.EndpointStatistics `json:"endpoints"` // Ordem da configuração
	Overall   models.OverallStatistics    `json:"overall"`

	Verdict    *models.Verdict         `json:"verdict,omitempty"`
	Comparison *analyzer.Comparison    `json:"comparison,omitempty"`
	Resources  *models.ResourceMetrics `json:"resources,omitempty"`
}

// Summary converte o relatório de volta para o formato do aggregator (usado como baseline)
func (r *LoadTestReport) Summary() *stats.Summary {
	return &stats.Summary{
		Endpoints: r.Endpoints,
		Overall:   r.Overall,
	}
}

// Status descrição curta do término do tráfego
func (r *LoadTestReport) Status() string {
	if r.Interrupted {
		return "interrupted"
	}
	return "completed"
}

// RenderJSON serializa v com indentação estável e newline final.
// encoding/json ordena chaves de map, então a saída é determinística.
func RenderJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// LoadSummary lê um summary.json gravado anteriormente
func LoadSummary(path string) (*LoadTestReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline %s: %w", path, err)
	}
	return ParseSummary(data)
}

// ParseSummary decodifica um summary.json
func ParseSummary(data []byte) (*LoadTestReport, error) {
	var r LoadTestReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid summary: %w", err)
	}
	if r.Endpoints == nil && r.Overall.Name == "" {
		return nil, fmt.Errorf("invalid summary: no statistics found")
	}
	return &r, nil
}
