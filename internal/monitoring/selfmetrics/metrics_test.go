package selfmetrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"k8s-dev-loadtest/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestObserve testa contadores e histograma
func TestObserve(t *testing.T) {
	m := New()

	m.Observe(models.RequestOutcome{Endpoint: "foo", LatencyMs: 12, Success: true})
	m.Observe(models.RequestOutcome{Endpoint: "foo", LatencyMs: 30, Success: true})
	m.Observe(models.RequestOutcome{Endpoint: "foo", LatencyMs: 5, Reason: "timeout"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("foo", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("foo", "failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.requestDuration))
}

// TestGauges testa users ativos e veredito
func TestGauges(t *testing.T) {
	m := New()

	m.SetActiveUsers(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.activeUsers))

	m.SetVerdict(models.Verdict{Passed: true})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runPassed))

	m.SetVerdict(models.Verdict{Passed: false})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.runPassed))

	expected := `
# HELP loadtest_active_users Number of running virtual users
# TYPE loadtest_active_users gauge
loadtest_active_users 7
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "loadtest_active_users"))
}

// TestPush testa envio ao Pushgateway
func TestPush(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		path = r.URL.Path
		body = string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	m.SetActiveUsers(3)
	require.NoError(t, m.Push(context.Background(), srv.URL, "abc-123"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/metrics/job/loadtest/run_id/abc-123", path)
	assert.NotEmpty(t, body)
}

// TestPushFailure testa Pushgateway com erro
func TestPushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New().Push(context.Background(), srv.URL, "abc")
	assert.Error(t, err)
}
