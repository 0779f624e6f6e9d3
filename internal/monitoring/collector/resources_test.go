package collector

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"k8s-dev-loadtest/internal/models"

	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI responde por substring da expressão; failing força erro
type fakeAPI struct {
	mu      sync.Mutex
	vectors map[string]model.Vector
	matrix  model.Matrix
	failing []string
	down    bool
	queries []string
}

func (f *fakeAPI) fails(expr string) error {
	if f.down {
		return errors.New("connection refused")
	}
	for _, s := range f.failing {
		if strings.Contains(expr, s) {
			return errors.New("query timeout")
		}
	}
	return nil
}

func (f *fakeAPI) InstantQuery(ctx context.Context, expr string) (model.Vector, error) {
	f.mu.Lock()
	f.queries = append(f.queries, expr)
	f.mu.Unlock()

	if err := f.fails(expr); err != nil {
		return nil, err
	}
	for key, vec := range f.vectors {
		if strings.Contains(expr, key) {
			return vec, nil
		}
	}
	return model.Vector{}, nil
}

func (f *fakeAPI) RangeQuery(ctx context.Context, expr string, window, step time.Duration) (model.Matrix, error) {
	if err := f.fails(expr); err != nil {
		return nil, err
	}
	return f.matrix, nil
}

func podSample(ns, pod string, v float64) *model.Sample {
	return &model.Sample{
		Metric: model.Metric{"namespace": model.LabelValue(ns), "pod": model.LabelValue(pod)},
		Value:  model.SampleValue(v),
	}
}

func hostSample(host string, v float64) *model.Sample {
	return &model.Sample{
		Metric: model.Metric{"host": model.LabelValue(host)},
		Value:  model.SampleValue(v),
	}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		vectors: map[string]model.Vector{
			"container_cpu_usage_seconds_total": {
				podSample("default", "foo-1", 0.0125),
				podSample("apps", "bar-1", 0.5),
			},
			"container_memory_working_set_bytes": {
				podSample("default", "foo-1", 64*1024*1024),
			},
			"container_network_receive_bytes_total": {
				podSample("default", "foo-1", 2048),
			},
			"container_network_transmit_bytes_total": {
				podSample("default", "foo-1", 512),
			},
			"histogram_quantile(0.95": {
				hostSample("foo.localhost", 0.042),
				hostSample("bar.localhost", math.NaN()),
			},
			"rate(nginx_ingress_controller_requests": {
				hostSample("foo.localhost", 3.333),
			},
			"sum by (host) (nginx_ingress_controller_requests": {
				hostSample("foo.localhost", 1200),
			},
		},
		matrix: model.Matrix{
			{
				Metric: model.Metric{"namespace": "default", "pod": "foo-1"},
				Values: []model.SamplePair{{Value: 0.01}, {Value: 0.03}, {Value: 0.02}, {Value: model.SampleValue(math.NaN())}},
			},
		},
	}
}

func findPod(t *testing.T, m *models.ResourceMetrics, ns, pod string) models.ResourceSample {
	t.Helper()
	for _, p := range m.Pods {
		if p.Namespace == ns && p.Pod == pod {
			return p
		}
	}
	t.Fatalf("pod %s/%s not found", ns, pod)
	return models.ResourceSample{}
}

// TestCollect testa coleta completa e conversão de unidades
func TestCollect(t *testing.T) {
	c := NewResourceCollector(newFakeAPI(), DefaultConfig())
	m := c.Collect(context.Background(), []string{"default", "apps"}, []string{"foo.localhost", "bar.localhost"}, 5*time.Minute)

	assert.Empty(t, m.Failures)
	assert.Equal(t, 300, m.WindowSeconds)
	assert.Equal(t, []string{"apps", "default"}, m.Namespaces)

	require.Len(t, m.Pods, 2)
	assert.Equal(t, "apps", m.Pods[0].Namespace, "pods sorted by namespace")

	foo := findPod(t, m, "default", "foo-1")
	require.NotNil(t, foo.CPUMillicores)
	assert.Equal(t, 12.5, *foo.CPUMillicores)
	require.NotNil(t, foo.CPUP95Millicores)
	assert.Equal(t, 30.0, *foo.CPUP95Millicores)
	require.NotNil(t, foo.MemoryMB)
	assert.Equal(t, 64.0, *foo.MemoryMB)
	assert.Equal(t, 2.0, *foo.NetworkRxKBps)
	assert.Equal(t, 0.5, *foo.NetworkTxKBps)
	assert.Equal(t, 5*time.Minute, foo.WindowEnd.Sub(foo.WindowStart))

	bar := findPod(t, m, "apps", "bar-1")
	assert.Equal(t, 500.0, *bar.CPUMillicores)
	assert.Nil(t, bar.MemoryMB, "no series means absent, not zero")

	assert.Equal(t, []string{"bar.localhost", "foo.localhost"}, m.Hosts)
	require.Len(t, m.Ingress, 2)

	barIngress, fooIngress := m.Ingress[0], m.Ingress[1]
	assert.Equal(t, "bar.localhost", barIngress.Host)
	assert.Nil(t, barIngress.P95Ms, "NaN quantile is absent")
	assert.Nil(t, barIngress.RequestCount)

	require.NotNil(t, fooIngress.RequestCount)
	assert.Equal(t, int64(1200), *fooIngress.RequestCount)
	assert.Equal(t, 3.33, *fooIngress.RequestsPerSec)
	assert.Equal(t, 42.0, *fooIngress.P95Ms)
}

// TestCollectMemoryFailure testa resiliência a falha de uma métrica
func TestCollectMemoryFailure(t *testing.T) {
	api := newFakeAPI()
	api.failing = []string{"container_memory_working_set_bytes"}

	m := NewResourceCollector(api, DefaultConfig()).Collect(context.Background(), []string{"default"}, nil, 5*time.Minute)

	require.Len(t, m.Failures, 1)
	assert.Equal(t, MetricMemory, m.Failures[0].Metric)
	assert.True(t, m.Failed(MetricMemory))

	foo := findPod(t, m, "default", "foo-1")
	assert.Nil(t, foo.MemoryMB)
	assert.NotNil(t, foo.CPUMillicores)
	assert.NotNil(t, foo.NetworkRxKBps)
	assert.NotNil(t, foo.NetworkTxKBps)
}

// TestCollectSubMinuteWindow testa janela menor que um minuto
func TestCollectSubMinuteWindow(t *testing.T) {
	m := NewResourceCollector(newFakeAPI(), DefaultConfig()).Collect(context.Background(), []string{"default"}, nil, 30*time.Second)

	assert.Equal(t, 30, m.WindowSeconds)
	foo := findPod(t, m, "default", "foo-1")
	assert.Equal(t, 30*time.Second, foo.WindowEnd.Sub(foo.WindowStart))
}

// TestCollectBackendDown testa backend inacessível
func TestCollectBackendDown(t *testing.T) {
	api := newFakeAPI()
	api.down = true

	m := NewResourceCollector(api, DefaultConfig()).Collect(context.Background(), []string{"default"}, []string{"foo.localhost"}, time.Minute)

	assert.Empty(t, m.Pods)
	assert.Len(t, m.Failures, 10)
	require.Len(t, m.Ingress, 1)
	assert.Nil(t, m.Ingress[0].RequestCount)
	for i := 1; i < len(m.Failures); i++ {
		assert.Less(t, m.Failures[i-1].Metric, m.Failures[i].Metric)
	}
}

// TestCollectNoTargets testa coleta sem namespaces nem hosts
func TestCollectNoTargets(t *testing.T) {
	api := newFakeAPI()
	m := NewResourceCollector(api, DefaultConfig()).Collect(context.Background(), nil, nil, time.Minute)

	assert.Empty(t, api.queries)
	assert.NotNil(t, m.Pods)
	assert.NotNil(t, m.Ingress)
	assert.NotNil(t, m.Hosts)
}
