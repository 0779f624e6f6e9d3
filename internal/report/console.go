package report

import (
	"fmt"
	"io"
	"strings"

	"k8s-dev-loadtest/internal/models"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// nameColumn largura máxima da coluna de nomes no console
const nameColumn = 24

// PrintSummary imprime o resumo da execução no terminal
func PrintSummary(w io.Writer, r *LoadTestReport) {
	var lines []string

	lines = append(lines, labelStyle.Render("Run:      ")+valueStyle.Render(r.RunID))
	lines = append(lines, labelStyle.Render("Users:    ")+fmt.Sprintf("%d @ %.2f/s", r.Settings.Users, r.Settings.SpawnRate))
	status := r.Status()
	if r.Interrupted {
		status = warnStyle.Render(status)
	}
	lines = append(lines, labelStyle.Render("Elapsed:  ")+fmt.Sprintf("%.2fs (%s)", r.ElapsedS, status))
	lines = append(lines, "")

	header := fmt.Sprintf("%s %8s %8s %8s %9s %9s",
		runewidth.FillRight("Endpoint", nameColumn), "Reqs", "Fails", "Fail%", "p95(ms)", "p99(ms)")
	lines = append(lines, labelStyle.Render(header))
	for _, ep := range r.Endpoints {
		lines = append(lines, consoleRow(ep))
	}
	lines = append(lines, consoleRow(r.Overall))

	if r.Verdict != nil {
		lines = append(lines, "")
		lines = append(lines, renderVerdict(r.Verdict))
	}

	if r.Comparison != nil {
		lines = append(lines, labelStyle.Render("Baseline: ")+r.Comparison.Summary.String())
	}

	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
}

func consoleRow(s models.EndpointStatistics) string {
	name := runewidth.FillRight(truncate(s.Name, nameColumn), nameColumn)
	if !s.HasSamples() {
		return fmt.Sprintf("%s %8d %8d %8s %9s %9s", name, 0, 0, notAvailable, notAvailable, notAvailable)
	}
	return fmt.Sprintf("%s %8d %8d %8.2f %9.2f %9.2f",
		name, s.RequestCount, s.FailureCount, s.FailureRate, s.P95Ms, s.P99Ms)
}

func renderVerdict(v *models.Verdict) string {
	if v.Passed {
		return passStyle.Render("✅ PASS")
	}

	out := []string{failStyle.Render("❌ FAIL")}
	for _, violation := range v.Violations {
		out = append(out, failStyle.Render("   "+violation.String()))
	}
	return strings.Join(out, "\n")
}
