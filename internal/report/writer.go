package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"k8s-dev-loadtest/internal/models"

	"github.com/rs/zerolog/log"
)

// Format formato de saída do collector
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatBoth     Format = "both"
)

// ParseFormat valida o valor de --output-format
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "both", "":
		return FormatBoth, nil
	}
	return "", fmt.Errorf("invalid output format %q (expected json, markdown or both)", value)
}

func (f Format) includesJSON() bool     { return f == FormatJSON || f == FormatBoth }
func (f Format) includesMarkdown() bool { return f == FormatMarkdown || f == FormatBoth }

// Writer grava os artefatos em um diretório
type Writer struct {
	dir string
}

// NewWriter cria o diretório de saída se necessário
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Dir diretório de saída
func (w *Writer) Dir() string {
	return w.dir
}

// WriteSummary grava summary.json e summary.md
func (w *Writer) WriteSummary(r *LoadTestReport) ([]string, error) {
	data, err := RenderJSON(r)
	if err != nil {
		return nil, err
	}

	jsonPath, err := w.write(SummaryJSONFile, data)
	if err != nil {
		return nil, err
	}
	mdPath, err := w.write(SummaryMDFile, []byte(RenderSummaryMarkdown(r)))
	if err != nil {
		return nil, err
	}

	return []string{jsonPath, mdPath}, nil
}

// WriteCSV grava stats.csv (uma linha por endpoint mais a linha agregada)
func (w *Writer) WriteCSV(r *LoadTestReport) (string, error) {
	data, err := RenderCSV(r.Endpoints, r.Overall)
	if err != nil {
		return "", err
	}
	return w.write(StatsCSVFile, data)
}

// WriteResources grava resource_metrics.json e/ou resource_metrics.md
func (w *Writer) WriteResources(m *models.ResourceMetrics, format Format) ([]string, error) {
	var paths []string

	if format.includesJSON() {
		data, err := RenderJSON(m)
		if err != nil {
			return nil, err
		}
		path, err := w.write(ResourcesJSONFile, data)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	if format.includesMarkdown() {
		path, err := w.write(ResourcesMDFile, []byte(RenderResourcesMarkdown(m)))
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	return paths, nil
}

func (w *Writer) write(name string, data []byte) (string, error) {
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Debug().Str("path", path).Int("bytes", len(data)).Msg("Report written")
	return path, nil
}

var csvHeader = []string{
	"Name", "Request Count", "Failure Count", "Failure Rate %",
	"Median (ms)", "95%ile (ms)", "99%ile (ms)",
	"Min (ms)", "Max (ms)", "Average (ms)", "Requests/s",
}

// RenderCSV gera o conteúdo de stats.csv
func RenderCSV(endpoints []models.EndpointStatistics, overall models.OverallStatistics) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write(csvHeader); err != nil {
		return nil, err
	}
	rows := make([]models.EndpointStatistics, 0, len(endpoints)+1)
	rows = append(rows, endpoints...)
	rows = append(rows, overall)
	for _, s := range rows {
		if err := cw.Write(csvRow(s)); err != nil {
			return nil, err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("failed to render csv: %w", err)
	}
	return buf.Bytes(), nil
}

func csvRow(s models.EndpointStatistics) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	return []string{
		s.Name,
		strconv.Itoa(s.RequestCount),
		strconv.Itoa(s.FailureCount),
		f(s.FailureRate),
		f(s.P50Ms), f(s.P95Ms), f(s.P99Ms),
		f(s.MinMs), f(s.MaxMs), f(s.MeanMs),
		f(s.RequestsPerSec),
	}
}
