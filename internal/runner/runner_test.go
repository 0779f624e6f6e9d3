package runner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"k8s-dev-loadtest/internal/config"
	"k8s-dev-loadtest/internal/echo"
	"k8s-dev-loadtest/internal/generator"
	"k8s-dev-loadtest/internal/models"
	"k8s-dev-loadtest/internal/report"
	"k8s-dev-loadtest/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startEcho sobe um echo server em httptest
func startEcho(t *testing.T, text string, failRate float64) *httptest.Server {
	t.Helper()
	s, err := echo.NewServer(echo.Config{Text: text, FailRate: failRate, Seed: 7})
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func inlineURLs(t *testing.T, endpoints []models.Endpoint) string {
	t.Helper()
	data, err := json.Marshal(endpoints)
	require.NoError(t, err)
	return string(data)
}

func testOptions(t *testing.T, endpoints []models.Endpoint, duration time.Duration) Options {
	t.Helper()
	return Options{
		Endpoints: config.EndpointSource{URLs: inlineURLs(t, endpoints), Environ: map[string]string{}},
		Generator: generator.Config{
			Users:     10,
			SpawnRate: 100,
			Duration:  duration,
			MinWait:   10 * time.Millisecond,
			MaxWait:   50 * time.Millisecond,
			Grace:     2 * time.Second,
			Seed:      42,
		},
		Thresholds: models.DefaultThresholds(),
		OutputDir:  filepath.Join(t.TempDir(), "results"),
	}
}

func threeEndpoints(t *testing.T) []models.Endpoint {
	foo := startEcho(t, "foo", 0)
	bar := startEcho(t, "bar", 0)
	broken := startEcho(t, "broken", 1)

	return []models.Endpoint{
		{Name: "foo", URL: foo.URL + "/", Expected: "foo"},
		{Name: "bar", URL: bar.URL + "/", Expected: "bar"},
		{Name: "broken", URL: broken.URL + "/"},
	}
}

// TestRunEndToEnd 3 endpoints, 10 users, um endpoint sempre falhando
func TestRunEndToEnd(t *testing.T) {
	opts := testOptions(t, threeEndpoints(t), 2*time.Second)
	opts.CSV = true
	opts.HistoryDB = filepath.Join(t.TempDir(), "history.db")

	var (
		mu     sync.Mutex
		phases []models.RunPhase
	)
	r := New(opts)
	r.OnPhase = func(p models.RunPhase) {
		mu.Lock()
		phases = append(phases, p)
		mu.Unlock()
	}

	out, err := r.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, out.Report)

	assert.Equal(t, models.PhaseDone, out.Phase)
	assert.False(t, out.Passed())

	rep := out.Report
	require.Len(t, rep.Endpoints, 3)
	assert.Equal(t, []string{"foo", "bar", "broken"}, []string{rep.Endpoints[0].Name, rep.Endpoints[1].Name, rep.Endpoints[2].Name})

	broken := rep.Endpoints[2]
	require.Greater(t, broken.RequestCount, 0)
	assert.Equal(t, 100.0, broken.FailureRate)
	assert.Equal(t, broken.RequestCount, broken.Failures["bad_status:500"])
	assert.Equal(t, 0, rep.Endpoints[0].FailureCount)

	assert.Greater(t, rep.Overall.FailureRate, 0.0)
	assert.Less(t, rep.Overall.FailureRate, 100.0)

	total := 0
	for _, ep := range rep.Endpoints {
		total += ep.RequestCount
	}
	assert.Equal(t, rep.Overall.RequestCount, total)

	require.NotEmpty(t, rep.Verdict.Violations)
	assert.Equal(t, models.MetricErrorRate, rep.Verdict.Violations[len(rep.Verdict.Violations)-1].Metric)

	mu.Lock()
	assert.Equal(t, []models.RunPhase{
		models.PhaseRampingUp, models.PhaseSteady, models.PhaseDraining,
		models.PhaseAggregated, models.PhaseEvaluated, models.PhaseReported, models.PhaseDone,
	}, phases)
	mu.Unlock()

	for _, name := range []string{report.SummaryJSONFile, report.SummaryMDFile, report.StatsCSVFile} {
		_, err := os.Stat(filepath.Join(opts.OutputDir, name))
		assert.NoError(t, err, name)
	}

	loaded, err := report.LoadSummary(filepath.Join(opts.OutputDir, report.SummaryJSONFile))
	require.NoError(t, err)
	assert.Equal(t, r.RunID(), loaded.RunID)

	history, err := storage.NewHistory(&storage.HistoryConfig{DBPath: opts.HistoryDB})
	require.NoError(t, err)
	defer history.Close()
	rec, err := history.GetRun(context.Background(), r.RunID())
	require.NoError(t, err)
	assert.False(t, rec.Passed)
	assert.Equal(t, rep.Overall.RequestCount, rec.TotalRequests)
}

// TestRunConfigError testa FAILED antes de qualquer tráfego
func TestRunConfigError(t *testing.T) {
	opts := testOptions(t, nil, time.Second)
	opts.Endpoints = config.EndpointSource{URLs: "[]", Environ: map[string]string{}}

	r := New(opts)
	out, err := r.Run(context.Background())
	require.Error(t, err)

	var cfgErr *config.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
	assert.True(t, errors.Is(err, config.ErrNoEndpoints))
	assert.Equal(t, models.PhaseFailed, out.Phase)
	assert.Nil(t, out.Report)

	_, statErr := os.Stat(opts.OutputDir)
	assert.True(t, os.IsNotExist(statErr), "no report should be written")
}

// TestRunInvalidSettings testa validação de parâmetros
func TestRunInvalidSettings(t *testing.T) {
	opts := testOptions(t, []models.Endpoint{{Name: "x", URL: "http://x"}}, time.Second)
	opts.Generator.Users = 0

	out, err := New(opts).Run(context.Background())
	var cfgErr *config.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "settings", cfgErr.Source)
	assert.Equal(t, models.PhaseFailed, out.Phase)
}

// TestRunInvalidMetricsWindow testa janela de métricas não positiva
func TestRunInvalidMetricsWindow(t *testing.T) {
	opts := testOptions(t, []models.Endpoint{{Name: "x", URL: "http://x"}}, time.Second)
	opts.Resources = &ResourceOptions{Source: &fakeResources{}, Window: 0}

	out, err := New(opts).Run(context.Background())
	var cfgErr *config.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "metrics-window", cfgErr.Source)
	assert.Equal(t, models.PhaseFailed, out.Phase)
}

// TestRunInterrupted testa relatório parcial após cancelamento
func TestRunInterrupted(t *testing.T) {
	foo := startEcho(t, "foo", 0)
	opts := testOptions(t, []models.Endpoint{{Name: "foo", URL: foo.URL}}, 30*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(500*time.Millisecond, cancel)

	start := time.Now()
	out, err := New(opts).Run(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)

	assert.True(t, out.Report.Interrupted)
	assert.Equal(t, models.PhaseDone, out.Phase)
	assert.Greater(t, out.Report.Overall.RequestCount, 0)

	md, err := os.ReadFile(filepath.Join(opts.OutputDir, report.SummaryMDFile))
	require.NoError(t, err)
	assert.Contains(t, string(md), "(interrupted)")
}

type fakeResources struct {
	namespaces []string
	hosts      []string
}

func (f *fakeResources) Collect(ctx context.Context, namespaces, hosts []string, window time.Duration) *models.ResourceMetrics {
	f.namespaces, f.hosts = namespaces, hosts
	return &models.ResourceMetrics{
		WindowSeconds: int(window.Seconds()),
		Namespaces:    namespaces,
		Hosts:         hosts,
		Pods:          []models.ResourceSample{},
		Ingress:       []models.IngressSample{},
		Failures:      []models.QueryFailure{},
	}
}

// TestRunWithResources testa junção das métricas de recursos
func TestRunWithResources(t *testing.T) {
	foo := startEcho(t, "foo", 0)
	opts := testOptions(t, []models.Endpoint{{Name: "foo", URL: foo.URL, Namespace: "demo"}}, 500*time.Millisecond)

	source := &fakeResources{}
	opts.Resources = &ResourceOptions{Source: source, Window: 5 * time.Minute}

	out, err := New(opts).Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, out.Report.Resources)
	assert.Equal(t, 300, out.Report.Resources.WindowSeconds)
	assert.Equal(t, []string{"demo", config.IngressNamespace}, source.namespaces)
	assert.Equal(t, []string{"127.0.0.1"}, source.hosts)

	for _, name := range []string{report.ResourcesJSONFile, report.ResourcesMDFile} {
		_, err := os.Stat(filepath.Join(opts.OutputDir, name))
		assert.NoError(t, err, name)
	}
}

// TestRunBaselineFromHistory testa comparação com a execução anterior
func TestRunBaselineFromHistory(t *testing.T) {
	foo := startEcho(t, "foo", 0)
	endpoints := []models.Endpoint{{Name: "foo", URL: foo.URL}}
	historyDB := filepath.Join(t.TempDir(), "history.db")

	first := testOptions(t, endpoints, 300*time.Millisecond)
	first.HistoryDB = historyDB
	first.Baseline = BaselineFromHistory
	out, err := New(first).Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, out.Report.Comparison, "no previous run to compare")
	firstID := out.Report.RunID

	second := testOptions(t, endpoints, 300*time.Millisecond)
	second.HistoryDB = historyDB
	second.Baseline = BaselineFromHistory
	out, err = New(second).Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, out.Report.Comparison)
	assert.Equal(t, firstID, out.Report.Comparison.BaselineID)
	require.Len(t, out.Report.Comparison.Endpoints, 1)
}

// TestRunBaselineFile testa baseline a partir de summary.json
func TestRunBaselineFile(t *testing.T) {
	foo := startEcho(t, "foo", 0)
	endpoints := []models.Endpoint{{Name: "foo", URL: foo.URL}}

	first := testOptions(t, endpoints, 300*time.Millisecond)
	_, err := New(first).Run(context.Background())
	require.NoError(t, err)

	second := testOptions(t, endpoints, 300*time.Millisecond)
	second.Baseline = filepath.Join(first.OutputDir, report.SummaryJSONFile)
	out, err := New(second).Run(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, out.Report.Comparison)

	// baseline ausente não falha a execução
	third := testOptions(t, endpoints, 300*time.Millisecond)
	third.Baseline = filepath.Join(t.TempDir(), "missing.json")
	out, err = New(third).Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, out.Report.Comparison)
}

// TestRunPushgateway testa envio das self metrics
func TestRunPushgateway(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
	)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		path = r.URL.Path
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	foo := startEcho(t, "foo", 0)
	opts := testOptions(t, []models.Endpoint{{Name: "foo", URL: foo.URL}}, 300*time.Millisecond)
	opts.PushgatewayURL = gateway.URL

	r := New(opts)
	out, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Passed())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/metrics/job/loadtest/run_id/"+r.RunID(), path)
}
