package prometheus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/rs/zerolog/log"
)

// QueryAPI contrato mínimo do backend de métricas: instant e range queries
// retornando séries rotuladas. O collector depende apenas desta interface.
type QueryAPI interface {
	InstantQuery(ctx context.Context, expr string) (model.Vector, error)
	RangeQuery(ctx context.Context, expr string, window, step time.Duration) (model.Matrix, error)
}

// Client wrapper para Prometheus API
type Client struct {
	api      v1.API
	endpoint string
	timeout  time.Duration
	now      func() time.Time

	mu        sync.Mutex
	connected bool
}

// NewClient cria um novo client Prometheus (sem teste de conexão).
// Lazy connection: a primeira query testa a conexão.
func NewClient(endpoint string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	apiClient, err := api.NewClient(api.Config{
		Address: endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	log.Debug().
		Str("endpoint", endpoint).
		Msg("Prometheus client created (lazy connection)")

	return &Client{
		api:      v1.NewAPI(apiClient),
		endpoint: endpoint,
		timeout:  timeout,
		now:      time.Now,
	}, nil
}

// TestConnection testa a conexão com Prometheus
func (c *Client) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, _, err := c.api.Query(ctx, "up", c.now())

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.connected = false
		return fmt.Errorf("connection test failed: %w", err)
	}

	c.connected = true
	log.Debug().
		Str("endpoint", c.endpoint).
		Msg("Prometheus connection test successful")

	return nil
}

func (c *Client) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()

	if connected {
		return nil
	}
	return c.TestConnection(ctx)
}

// InstantQuery executa uma query PromQL no instante atual.
// Resultados escalares viram um vector de uma amostra sem labels.
func (c *Client) InstantQuery(ctx context.Context, expr string) (model.Vector, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, warnings, err := c.api.Query(ctx, expr, c.now())
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	c.logWarnings(warnings, expr)

	switch v := result.(type) {
	case model.Vector:
		return v, nil
	case *model.Scalar:
		return model.Vector{&model.Sample{Metric: model.Metric{}, Value: v.Value, Timestamp: v.Timestamp}}, nil
	default:
		return nil, fmt.Errorf("unexpected value type: %T", result)
	}
}

// RangeQuery executa uma range query cobrindo os últimos window, com resolução step
func (c *Client) RangeQuery(ctx context.Context, expr string, window, step time.Duration) (model.Matrix, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	end := c.now()
	r := v1.Range{
		Start: end.Add(-window),
		End:   end,
		Step:  step,
	}

	result, warnings, err := c.api.QueryRange(ctx, expr, r)
	if err != nil {
		return nil, fmt.Errorf("range query failed: %w", err)
	}
	c.logWarnings(warnings, expr)

	matrix, ok := result.(model.Matrix)
	if !ok {
		return nil, fmt.Errorf("expected matrix, got %T", result)
	}
	return matrix, nil
}

func (c *Client) logWarnings(warnings v1.Warnings, expr string) {
	if len(warnings) == 0 {
		return
	}
	log.Warn().
		Str("endpoint", c.endpoint).
		Str("query", expr).
		Strs("warnings", warnings).
		Msg("Prometheus query returned warnings")
}

// IsConnected retorna se o client está conectado
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Endpoint retorna o endpoint
func (c *Client) Endpoint() string {
	return c.endpoint
}
