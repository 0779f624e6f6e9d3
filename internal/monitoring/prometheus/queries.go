package prometheus

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/common/model"
)

// QueryTemplate representa um template de query PromQL
type QueryTemplate struct {
	Name        string
	Description string
	Query       string
	Variables   []string
}

// Queries de recursos por pod
var (
	PodCPUQuery = QueryTemplate{
		Name:        "cpu",
		Description: "CPU usage per pod in cores, averaged over the window",
		Query: `
sum by (namespace, pod) (
  rate(container_cpu_usage_seconds_total{namespace=~"{{.ns_selector}}",container!=""}[{{.window}}])
)
`,
		Variables: []string{"ns_selector", "window"},
	}

	PodCPUSeriesQuery = QueryTemplate{
		Name:        "cpu_p95",
		Description: "CPU usage per pod in cores, 1m rate sampled across the window",
		Query: `
sum by (namespace, pod) (
  rate(container_cpu_usage_seconds_total{namespace=~"{{.ns_selector}}",container!=""}[1m])
)
`,
		Variables: []string{"ns_selector"},
	}

	PodMemoryQuery = QueryTemplate{
		Name:        "memory",
		Description: "Working set memory per pod in bytes",
		Query: `
sum by (namespace, pod) (
  container_memory_working_set_bytes{namespace=~"{{.ns_selector}}",container!=""}
)
`,
		Variables: []string{"ns_selector"},
	}

	PodNetworkRxQuery = QueryTemplate{
		Name:        "network_rx",
		Description: "Network received bytes per second per pod",
		Query: `
sum by (namespace, pod) (
  rate(container_network_receive_bytes_total{namespace=~"{{.ns_selector}}"}[{{.window}}])
)
`,
		Variables: []string{"ns_selector", "window"},
	}

	PodNetworkTxQuery = QueryTemplate{
		Name:        "network_tx",
		Description: "Network transmitted bytes per second per pod",
		Query: `
sum by (namespace, pod) (
  rate(container_network_transmit_bytes_total{namespace=~"{{.ns_selector}}"}[{{.window}}])
)
`,
		Variables: []string{"ns_selector", "window"},
	}
)

// Queries do ingress controller por host
var (
	IngressRequestsQuery = QueryTemplate{
		Name:        "ingress_requests",
		Description: "Total requests per host (counter value)",
		Query: `
sum by (host) (nginx_ingress_controller_requests{host=~"{{.host_selector}}"})
`,
		Variables: []string{"host_selector"},
	}

	IngressRateQuery = QueryTemplate{
		Name:        "ingress_rate",
		Description: "Requests per second per host over the window",
		Query: `
sum by (host) (rate(nginx_ingress_controller_requests{host=~"{{.host_selector}}"}[{{.window}}]))
`,
		Variables: []string{"host_selector", "window"},
	}

	// Quantil interpolado pelo Prometheus a partir dos buckets do histograma
	IngressLatencyQuery = QueryTemplate{
		Name:        "ingress_latency",
		Description: "Response time quantile per host in seconds",
		Query: `
histogram_quantile({{.quantile}},
  sum by (host, le) (
    rate(nginx_ingress_controller_request_duration_seconds_bucket{host=~"{{.host_selector}}"}[{{.window}}])
  )
)
`,
		Variables: []string{"quantile", "host_selector", "window"},
	}
)

// QueryBuilder constrói queries substituindo variáveis
type QueryBuilder struct {
	template QueryTemplate
	vars     map[string]string
}

// NewQueryBuilder cria um novo builder
func NewQueryBuilder(template QueryTemplate) *QueryBuilder {
	return &QueryBuilder{
		template: template,
		vars:     make(map[string]string),
	}
}

// WithNamespaces define o seletor regex de namespaces
func (qb *QueryBuilder) WithNamespaces(namespaces []string) *QueryBuilder {
	qb.vars["ns_selector"] = regexSelector(namespaces)
	return qb
}

// WithHosts define o seletor regex de hosts
func (qb *QueryBuilder) WithHosts(hosts []string) *QueryBuilder {
	qb.vars["host_selector"] = regexSelector(hosts)
	return qb
}

// WithWindow define a janela dos rates (ex: 5m)
func (qb *QueryBuilder) WithWindow(window time.Duration) *QueryBuilder {
	qb.vars["window"] = model.Duration(window).String()
	return qb
}

// WithQuantile define o quantil (0-1) do histogram_quantile
func (qb *QueryBuilder) WithQuantile(q float64) *QueryBuilder {
	qb.vars["quantile"] = strconv.FormatFloat(q, 'f', -1, 64)
	return qb
}

// Build constrói a query final
func (qb *QueryBuilder) Build() (string, error) {
	query := strings.TrimSpace(qb.template.Query)

	for key, value := range qb.vars {
		placeholder := fmt.Sprintf("{{.%s}}", key)
		query = strings.ReplaceAll(query, placeholder, value)
	}

	if strings.Contains(query, "{{.") {
		return "", fmt.Errorf("query %s contains unsubstituted variables", qb.template.Name)
	}

	query = strings.Join(strings.Fields(query), " ")
	query = strings.ReplaceAll(query, "( ", "(")
	query = strings.ReplaceAll(query, " )", ")")

	return query, nil
}

// regexSelector monta "a|b|c" com cada valor escapado para regex e string PromQL
func regexSelector(values []string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		quoted := regexp.QuoteMeta(v)
		parts = append(parts, strings.ReplaceAll(quoted, `\`, `\\`))
	}
	return strings.Join(parts, "|")
}

// GetAllTemplates retorna todos os templates disponíveis
func GetAllTemplates() []QueryTemplate {
	return []QueryTemplate{
		PodCPUQuery,
		PodCPUSeriesQuery,
		PodMemoryQuery,
		PodNetworkRxQuery,
		PodNetworkTxQuery,
		IngressRequestsQuery,
		IngressRateQuery,
		IngressLatencyQuery,
	}
}
