package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"k8s-dev-loadtest/internal/analyzer"
	"k8s-dev-loadtest/internal/models"

	"github.com/mattn/go-runewidth"
)

// podNameWidth largura máxima (em colunas) do nome do pod nas tabelas
const podNameWidth = 40

const notAvailable = "n/a"

// RenderSummaryMarkdown gera o summary.md de uma execução
func RenderSummaryMarkdown(r *LoadTestReport) string {
	var b strings.Builder

	b.WriteString("# Load Test Summary\n\n")
	fmt.Fprintf(&b, "- **Run ID:** `%s`\n", r.RunID)
	fmt.Fprintf(&b, "- **Started:** %s\n", formatTime(r.StartedAt))
	fmt.Fprintf(&b, "- **Elapsed:** %.2fs (%s)\n", r.ElapsedS, r.Status())
	fmt.Fprintf(&b, "- **Users:** %d (spawn rate %.2f/s)\n", r.Settings.Users, r.Settings.SpawnRate)
	fmt.Fprintf(&b, "- **Duration:** %.0fs\n", r.Settings.DurationS)
	if r.Verdict != nil {
		fmt.Fprintf(&b, "- **Result:** %s\n", r.Verdict.Result())
	}

	b.WriteString("\n## Endpoints\n\n")
	writeStatsTable(&b, r.Endpoints, r.Overall)

	writeFailureBreakdown(&b, r.Endpoints)

	if r.Verdict != nil {
		writeThresholds(&b, r.Overall, r.Settings.Thresholds, r.Verdict)
	}

	if r.Comparison != nil {
		writeComparison(&b, r.Comparison)
	}

	if r.Resources != nil {
		b.WriteString("\n## Resources\n\n")
		writeResources(&b, r.Resources, "###")
	}

	return b.String()
}

// RenderResourcesMarkdown gera o resource_metrics.md
func RenderResourcesMarkdown(m *models.ResourceMetrics) string {
	var b strings.Builder
	b.WriteString("# Resource Metrics\n\n")
	writeResources(&b, m, "##")
	return b.String()
}

func writeStatsTable(b *strings.Builder, endpoints []models.EndpointStatistics, overall models.OverallStatistics) {
	b.WriteString("| Endpoint | Requests | Failures | Failure % | p50 (ms) | p95 (ms) | p99 (ms) | Min (ms) | Max (ms) | Mean (ms) | Req/s |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|---:|---:|---:|---:|\n")
	for _, ep := range endpoints {
		writeStatsRow(b, cell(ep.Name), ep)
	}
	writeStatsRow(b, "**"+overall.Name+"**", overall)
}

func writeStatsRow(b *strings.Builder, name string, s models.EndpointStatistics) {
	if !s.HasSamples() {
		fmt.Fprintf(b, "| %s | 0 | 0 | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			name, notAvailable, notAvailable, notAvailable, notAvailable, notAvailable, notAvailable, notAvailable, notAvailable)
		return
	}
	fmt.Fprintf(b, "| %s | %d | %d | %.2f | %.2f | %.2f | %.2f | %.2f | %.2f | %.2f | %.2f |\n",
		name, s.RequestCount, s.FailureCount, s.FailureRate,
		s.P50Ms, s.P95Ms, s.P99Ms, s.MinMs, s.MaxMs, s.MeanMs, s.RequestsPerSec)
}

func writeFailureBreakdown(b *strings.Builder, endpoints []models.EndpointStatistics) {
	var rows []string
	for _, ep := range endpoints {
		reasons := make([]string, 0, len(ep.Failures))
		for reason := range ep.Failures {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			rows = append(rows, fmt.Sprintf("| %s | `%s` | %d |", cell(ep.Name), reason, ep.Failures[reason]))
		}
	}
	if len(rows) == 0 {
		return
	}

	b.WriteString("\n## Failures\n\n")
	b.WriteString("| Endpoint | Reason | Count |\n")
	b.WriteString("|---|---|---:|\n")
	for _, row := range rows {
		b.WriteString(row)
		b.WriteByte('\n')
	}
}

func writeThresholds(b *strings.Builder, overall models.OverallStatistics, cfg models.ThresholdConfig, verdict *models.Verdict) {
	violated := make(map[string]bool, len(verdict.Violations))
	for _, v := range verdict.Violations {
		violated[v.Metric] = true
	}

	b.WriteString("\n## Thresholds\n\n")
	b.WriteString("| Metric | Observed | Limit | Status |\n")
	b.WriteString("|---|---:|---:|---|\n")

	checks := []struct {
		metric     string
		observed   float64
		limit      float64
		percentile bool
	}{
		{models.MetricP95Latency, overall.P95Ms, cfg.P95Ms, true},
		{models.MetricP99Latency, overall.P99Ms, cfg.P99Ms, true},
		{models.MetricErrorRate, overall.FailureRate, cfg.MaxErrorRate, false},
	}
	for _, c := range checks {
		observed := fmt.Sprintf("%.2f", c.observed)
		status := "OK"
		switch {
		case violated[c.metric]:
			status = "VIOLATED"
		case c.percentile && !overall.HasSamples():
			observed = notAvailable
			status = "SKIPPED"
		}
		fmt.Fprintf(b, "| %s | %s | %.2f | %s |\n", c.metric, observed, c.limit, status)
	}
}

func writeComparison(b *strings.Builder, c *analyzer.Comparison) {
	b.WriteString("\n## Baseline Comparison\n\n")
	if c.BaselineID != "" {
		fmt.Fprintf(b, "Baseline run `%s`. ", c.BaselineID)
	}
	fmt.Fprintf(b, "%s\n\n", c.Summary.String())

	b.WriteString("| Endpoint | p95 base | p95 now | p95 Δ% | p99 base | p99 now | p99 Δ% | Error Δ (pp) | Status |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|---:|---|\n")
	for _, res := range c.Endpoints {
		writeComparisonRow(b, cell(res.Name), res)
	}
	writeComparisonRow(b, "**"+c.Overall.Name+"**", c.Overall)

	results := make([]analyzer.ComparisonResult, 0, len(c.Endpoints)+1)
	results = append(results, c.Endpoints...)
	results = append(results, c.Overall)

	var issues []string
	for _, res := range results {
		for _, issue := range res.Issues {
			issues = append(issues, fmt.Sprintf("- %s: %s", cell(res.Name), issue))
		}
	}
	if len(issues) > 0 {
		b.WriteByte('\n')
		b.WriteString(strings.Join(issues, "\n"))
		b.WriteByte('\n')
	}
}

func writeComparisonRow(b *strings.Builder, name string, r analyzer.ComparisonResult) {
	fmt.Fprintf(b, "| %s | %.2f | %.2f | %+.1f | %.2f | %.2f | %+.1f | %+.2f | %s |\n",
		name,
		r.P95Baseline, r.P95Current, r.P95DeltaPercent,
		r.P99Baseline, r.P99Current, r.P99DeltaPercent,
		r.ErrorRateDelta, r.Status)
}

func writeResources(b *strings.Builder, m *models.ResourceMetrics, heading string) {
	fmt.Fprintf(b, "- **Collected:** %s\n", formatTime(m.CollectedAt))
	fmt.Fprintf(b, "- **Window:** %s\n", formatWindow(m.WindowSeconds))
	fmt.Fprintf(b, "- **Namespaces:** %s\n", joinOrNone(m.Namespaces))
	fmt.Fprintf(b, "- **Hosts:** %s\n", joinOrNone(m.Hosts))

	fmt.Fprintf(b, "\n%s Pods\n\n", heading)
	if len(m.Pods) == 0 {
		b.WriteString("_No pod metrics._\n")
	} else {
		b.WriteString("| Namespace | Pod | CPU (m) | CPU p95 (m) | Memory (MB) | Net RX (KB/s) | Net TX (KB/s) |\n")
		b.WriteString("|---|---|---:|---:|---:|---:|---:|\n")
		for _, p := range m.Pods {
			fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %s | %s |\n",
				cell(p.Namespace), cell(truncate(p.Pod, podNameWidth)),
				optFloat(p.CPUMillicores), optFloat(p.CPUP95Millicores), optFloat(p.MemoryMB),
				optFloat(p.NetworkRxKBps), optFloat(p.NetworkTxKBps))
		}
	}

	fmt.Fprintf(b, "\n%s Ingress\n\n", heading)
	if len(m.Ingress) == 0 {
		b.WriteString("_No ingress metrics._\n")
	} else {
		b.WriteString("| Host | Requests | Req/s | p50 (ms) | p95 (ms) | p99 (ms) |\n")
		b.WriteString("|---|---:|---:|---:|---:|---:|\n")
		for _, in := range m.Ingress {
			fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %s |\n",
				cell(in.Host), optInt(in.RequestCount), optFloat(in.RequestsPerSec),
				optFloat(in.P50Ms), optFloat(in.P95Ms), optFloat(in.P99Ms))
		}
	}

	if len(m.Failures) > 0 {
		fmt.Fprintf(b, "\n%s Query Failures\n\n", heading)
		b.WriteString("| Metric | Error |\n")
		b.WriteString("|---|---|\n")
		for _, f := range m.Failures {
			fmt.Fprintf(b, "| %s | %s |\n", f.Metric, cell(f.Error))
		}
	}
}

// truncate corta s em width colunas de exibição, terminando com "..."
func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

// cell escapa o conteúdo de uma célula de tabela markdown
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func optFloat(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func optInt(v *int64) string {
	if v == nil {
		return notAvailable
	}
	return strconv.FormatInt(*v, 10)
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}

// formatWindow mostra minutos inteiros como "N minutes", o resto como duração ("30s", "1m30s")
func formatWindow(seconds int) string {
	if seconds > 0 && seconds%60 == 0 {
		return fmt.Sprintf("%d minutes", seconds/60)
	}
	return (time.Duration(seconds) * time.Second).String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return notAvailable
	}
	return t.UTC().Format(time.RFC3339)
}
