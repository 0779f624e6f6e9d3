package stats

import (
	"sort"
	"time"

	"k8s-dev-loadtest/internal/models"
)

// Summary estatísticas por endpoint (ordem da configuração) e agregadas
type Summary struct {
	Endpoints []models.EndpointStatistics `json:"endpoints"`
	Overall   models.OverallStatistics    `json:"overall"`
}

// sampleSet amostras brutas de um grupo
type sampleSet struct {
	latencies []float64
	failures  map[string]int
	failed    int
}

func (s *sampleSet) add(o models.RequestOutcome) {
	s.latencies = append(s.latencies, o.LatencyMs)
	if !o.Success {
		s.failed++
		reason := o.Reason
		if reason == "" {
			reason = "unknown"
		}
		if s.failures == nil {
			s.failures = make(map[string]int)
		}
		s.failures[reason]++
	}
}

// Aggregate agrupa os outcomes por endpoint e recalcula todas as estatísticas
// a partir das amostras brutas. Endpoints sem amostras aparecem com contagem zero.
// Outcomes de endpoints fora da configuração são listados depois, em ordem alfabética.
// elapsed é usado para requests/sec (0 desabilita).
func Aggregate(endpoints []models.Endpoint, outcomes []models.RequestOutcome, elapsed time.Duration) *Summary {
	groups := make(map[string]*sampleSet, len(endpoints))
	order := make([]string, 0, len(endpoints))
	for _, ep := range endpoints {
		if _, exists := groups[ep.Name]; exists {
			continue
		}
		groups[ep.Name] = &sampleSet{}
		order = append(order, ep.Name)
	}

	overall := &sampleSet{}
	var unknown []string

	for _, o := range outcomes {
		if o.Aborted {
			continue
		}
		g, ok := groups[o.Endpoint]
		if !ok {
			g = &sampleSet{}
			groups[o.Endpoint] = g
			unknown = append(unknown, o.Endpoint)
		}
		g.add(o)
		overall.add(o)
	}

	sort.Strings(unknown)
	order = append(order, unknown...)

	summary := &Summary{
		Endpoints: make([]models.EndpointStatistics, 0, len(order)),
	}
	for _, name := range order {
		summary.Endpoints = append(summary.Endpoints, compute(name, groups[name], elapsed))
	}
	summary.Overall = compute(models.OverallName, overall, elapsed)

	return summary
}

// compute calcula as estatísticas de um grupo de amostras
func compute(name string, s *sampleSet, elapsed time.Duration) models.EndpointStatistics {
	st := models.EndpointStatistics{
		Name:         name,
		RequestCount: len(s.latencies),
		FailureCount: s.failed,
	}
	if st.RequestCount == 0 {
		return st
	}

	if len(s.failures) > 0 {
		st.Failures = make(map[string]int, len(s.failures))
		for k, v := range s.failures {
			st.Failures[k] = v
		}
	}

	sorted := make([]float64, len(s.latencies))
	copy(sorted, s.latencies)
	sort.Float64s(sorted)

	var total float64
	for _, l := range sorted {
		total += l
	}

	st.FailureRate = Round2(float64(st.FailureCount) / float64(st.RequestCount) * 100)
	st.P50Ms = Round2(Percentile(sorted, 50))
	st.P95Ms = Round2(Percentile(sorted, 95))
	st.P99Ms = Round2(Percentile(sorted, 99))
	st.MinMs = Round2(sorted[0])
	st.MaxMs = Round2(sorted[len(sorted)-1])
	st.MeanMs = Round2(total / float64(len(sorted)))

	if elapsed > 0 {
		st.RequestsPerSec = Round2(float64(st.RequestCount) / elapsed.Seconds())
	}

	return st
}
