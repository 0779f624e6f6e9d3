package collector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"k8s-dev-loadtest/internal/models"
	"k8s-dev-loadtest/internal/monitoring/prometheus"
	"k8s-dev-loadtest/internal/stats"

	"github.com/prometheus/common/model"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	bytesPerMB = 1024 * 1024
	bytesPerKB = 1024
)

// Config configuração do collector
type Config struct {
	Step        time.Duration // Resolução da range query de CPU (default: 15s)
	Concurrency int           // Queries simultâneas (default: 4)
}

// DefaultConfig retorna configuração padrão
func DefaultConfig() Config {
	return Config{
		Step:        15 * time.Second,
		Concurrency: 4,
	}
}

// ResourceCollector coleta métricas de pods e do ingress em um QueryAPI
type ResourceCollector struct {
	api    prometheus.QueryAPI
	config Config
	now    func() time.Time
}

// NewResourceCollector cria um novo collector
func NewResourceCollector(api prometheus.QueryAPI, config Config) *ResourceCollector {
	defaults := DefaultConfig()
	if config.Step <= 0 {
		config.Step = defaults.Step
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}

	return &ResourceCollector{
		api:    api,
		config: config,
		now:    time.Now,
	}
}

// podKey identifica um pod
type podKey struct {
	namespace string
	pod       string
}

// partial resultado de uma query (nil em caso de falha)
type partial struct {
	metric string
	pods   map[podKey]float64
	hosts  map[string]float64
	err    error
}

// query uma métrica a coletar
type query struct {
	metric string
	expr   string
	scale  float64
	byHost bool
	series bool // range query + nearest-rank p95
}

// Collect executa todas as queries de forma concorrente e best-effort.
// Falha de uma métrica não interrompe as outras: o valor fica ausente (nil)
// e a falha é registrada em Failures.
func (c *ResourceCollector) Collect(ctx context.Context, namespaces, hosts []string, window time.Duration) *models.ResourceMetrics {
	collectedAt := c.now().UTC()
	result := &models.ResourceMetrics{
		CollectedAt:   collectedAt,
		WindowSeconds: int(window.Seconds()),
		Namespaces:    append([]string{}, namespaces...),
		Hosts:         []string{},
		Pods:          []models.ResourceSample{},
		Ingress:       []models.IngressSample{},
		Failures:      []models.QueryFailure{},
	}
	sort.Strings(result.Namespaces)

	queries, buildFailures := c.buildQueries(namespaces, hosts, window)
	result.Failures = append(result.Failures, buildFailures...)

	log.Info().
		Strs("namespaces", namespaces).
		Strs("hosts", hosts).
		Dur("window", window).
		Int("queries", len(queries)).
		Msg("Collecting resource metrics")

	partials := make([]partial, len(queries))
	var g errgroup.Group
	g.SetLimit(c.config.Concurrency)

	for i, q := range queries {
		g.Go(func() error {
			partials[i] = c.run(ctx, q, window)
			return nil
		})
	}
	_ = g.Wait()

	pods := make(map[podKey]*models.ResourceSample)
	ingress := make(map[string]*models.IngressSample)
	for _, h := range hosts {
		ingress[h] = &models.IngressSample{Host: h}
	}

	for _, p := range partials {
		if p.err != nil {
			log.Warn().
				Err(p.err).
				Str("metric", p.metric).
				Msg("Metric query failed, value will be absent")
			result.Failures = append(result.Failures, models.QueryFailure{
				Metric: p.metric,
				Error:  p.err.Error(),
			})
			continue
		}

		for key, value := range p.pods {
			sample, ok := pods[key]
			if !ok {
				sample = &models.ResourceSample{
					Namespace:   key.namespace,
					Pod:         key.pod,
					WindowStart: collectedAt.Add(-window),
					WindowEnd:   collectedAt,
				}
				pods[key] = sample
			}
			setPodValue(sample, p.metric, value)
		}

		for host, value := range p.hosts {
			sample, ok := ingress[host]
			if !ok {
				sample = &models.IngressSample{Host: host}
				ingress[host] = sample
			}
			setIngressValue(sample, p.metric, value)
		}
	}

	for _, sample := range pods {
		result.Pods = append(result.Pods, *sample)
	}
	sort.Slice(result.Pods, func(i, j int) bool {
		if result.Pods[i].Namespace != result.Pods[j].Namespace {
			return result.Pods[i].Namespace < result.Pods[j].Namespace
		}
		return result.Pods[i].Pod < result.Pods[j].Pod
	})

	for host, sample := range ingress {
		result.Hosts = append(result.Hosts, host)
		result.Ingress = append(result.Ingress, *sample)
	}
	sort.Strings(result.Hosts)
	sort.Slice(result.Ingress, func(i, j int) bool {
		return result.Ingress[i].Host < result.Ingress[j].Host
	})
	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].Metric < result.Failures[j].Metric
	})

	log.Info().
		Int("pods", len(result.Pods)).
		Int("hosts", len(result.Ingress)).
		Int("failures", len(result.Failures)).
		Msg("Resource metrics collected")

	return result
}

// buildQueries monta as queries de pods e ingress
func (c *ResourceCollector) buildQueries(namespaces, hosts []string, window time.Duration) ([]query, []models.QueryFailure) {
	var (
		queries  []query
		failures []models.QueryFailure
	)

	add := func(metric string, qb *prometheus.QueryBuilder, scale float64, byHost, series bool) {
		expr, err := qb.Build()
		if err != nil {
			failures = append(failures, models.QueryFailure{Metric: metric, Error: err.Error()})
			return
		}
		queries = append(queries, query{metric: metric, expr: expr, scale: scale, byHost: byHost, series: series})
	}

	if len(namespaces) > 0 {
		pod := func(t prometheus.QueryTemplate) *prometheus.QueryBuilder {
			return prometheus.NewQueryBuilder(t).WithNamespaces(namespaces).WithWindow(window)
		}
		add(MetricCPU, pod(prometheus.PodCPUQuery), 1000, false, false)
		add(MetricCPUP95, pod(prometheus.PodCPUSeriesQuery), 1000, false, true)
		add(MetricMemory, pod(prometheus.PodMemoryQuery), 1.0/bytesPerMB, false, false)
		add(MetricNetworkRx, pod(prometheus.PodNetworkRxQuery), 1.0/bytesPerKB, false, false)
		add(MetricNetworkTx, pod(prometheus.PodNetworkTxQuery), 1.0/bytesPerKB, false, false)
	}

	if len(hosts) > 0 {
		host := func(t prometheus.QueryTemplate) *prometheus.QueryBuilder {
			return prometheus.NewQueryBuilder(t).WithHosts(hosts).WithWindow(window)
		}
		add(MetricIngressRequests, host(prometheus.IngressRequestsQuery), 1, true, false)
		add(MetricIngressRate, host(prometheus.IngressRateQuery), 1, true, false)
		for _, q := range ingressQuantiles {
			add(q.metric, host(prometheus.IngressLatencyQuery).WithQuantile(q.quantile), 1000, true, false)
		}
	}

	return queries, failures
}

// run executa uma query e converte o resultado
func (c *ResourceCollector) run(ctx context.Context, q query, window time.Duration) partial {
	out := partial{metric: q.metric}

	if q.series {
		matrix, err := c.api.RangeQuery(ctx, q.expr, window, c.config.Step)
		if err != nil {
			out.err = err
			return out
		}
		out.pods = make(map[podKey]float64, len(matrix))
		for _, stream := range matrix {
			values := make([]float64, 0, len(stream.Values))
			for _, pair := range stream.Values {
				if v := float64(pair.Value); !math.IsNaN(v) && !math.IsInf(v, 0) {
					values = append(values, v)
				}
			}
			if len(values) == 0 {
				continue
			}
			out.pods[podKeyOf(stream.Metric)] = stats.Round2(stats.PercentileOf(values, 95) * q.scale)
		}
		return out
	}

	vector, err := c.api.InstantQuery(ctx, q.expr)
	if err != nil {
		out.err = err
		return out
	}

	if q.byHost {
		out.hosts = make(map[string]float64, len(vector))
	} else {
		out.pods = make(map[podKey]float64, len(vector))
	}

	for _, sample := range vector {
		v := float64(sample.Value)
		// histogram_quantile sem tráfego retorna NaN: valor ausente
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		v = stats.Round2(v * q.scale)

		if q.byHost {
			host := string(sample.Metric["host"])
			if host == "" {
				host = "unknown"
			}
			out.hosts[host] = v
		} else {
			out.pods[podKeyOf(sample.Metric)] = v
		}
	}

	return out
}

func podKeyOf(metric model.Metric) podKey {
	key := podKey{
		namespace: string(metric["namespace"]),
		pod:       string(metric["pod"]),
	}
	if key.namespace == "" {
		key.namespace = "unknown"
	}
	if key.pod == "" {
		key.pod = "unknown"
	}
	return key
}

func setPodValue(s *models.ResourceSample, metric string, v float64) {
	switch metric {
	case MetricCPU:
		s.CPUMillicores = &v
	case MetricCPUP95:
		s.CPUP95Millicores = &v
	case MetricMemory:
		s.MemoryMB = &v
	case MetricNetworkRx:
		s.NetworkRxKBps = &v
	case MetricNetworkTx:
		s.NetworkTxKBps = &v
	default:
		panic(fmt.Sprintf("unknown pod metric %s", metric))
	}
}

func setIngressValue(s *models.IngressSample, metric string, v float64) {
	switch metric {
	case MetricIngressRequests:
		n := int64(math.Round(v))
		s.RequestCount = &n
	case MetricIngressRate:
		s.RequestsPerSec = &v
	case MetricIngressP50:
		s.P50Ms = &v
	case MetricIngressP95:
		s.P95Ms = &v
	case MetricIngressP99:
		s.P99Ms = &v
	default:
		panic(fmt.Sprintf("unknown ingress metric %s", metric))
	}
}

// Nomes das métricas (usados em Failures)
const (
	MetricCPU             = "cpu"
	MetricCPUP95          = "cpu_p95"
	MetricMemory          = "memory"
	MetricNetworkRx       = "network_rx"
	MetricNetworkTx       = "network_tx"
	MetricIngressRequests = "ingress_requests"
	MetricIngressRate     = "ingress_rate"
	MetricIngressP50      = "ingress_p50"
	MetricIngressP95      = "ingress_p95"
	MetricIngressP99      = "ingress_p99"
)

var ingressQuantiles = []struct {
	metric   string
	quantile float64
}{
	{MetricIngressP50, 0.50},
	{MetricIngressP95, 0.95},
	{MetricIngressP99, 0.99},
}
