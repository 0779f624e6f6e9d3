package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"k8s-dev-loadtest/internal/models"

	"github.com/rs/zerolog/log"
)

// Prober executa uma requisição contra um endpoint
type Prober interface {
	Probe(ctx context.Context, endpoint models.Endpoint) models.RequestOutcome
}

// Config configuração do client HTTP
type Config struct {
	Timeout          time.Duration // Timeout por requisição (default: 10s)
	MaxConnsPerHost  int           // Conexões por host (default: 100)
	DisableKeepAlive bool
	UserAgent        string
}

// DefaultConfig retorna configuração padrão
func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		MaxConnsPerHost: 100,
		UserAgent:       "k8s-dev-loadtest/1.0",
	}
}

// Client probe HTTP
type Client struct {
	http      *http.Client
	timeout   time.Duration
	userAgent string
	now       func() time.Time
}

// NewClient cria um novo probe client
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = DefaultConfig().MaxConnsPerHost
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DisableKeepAlives:   cfg.DisableKeepAlive,
		MaxIdleConns:        cfg.MaxConnsPerHost * 2,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
		},
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		now:       time.Now,
	}
}

// Probe executa uma requisição GET e mede a latência até o body completo.
// Nunca retorna erro: toda falha vira um RequestOutcome com Success=false.
func (c *Client) Probe(ctx context.Context, endpoint models.Endpoint) models.RequestOutcome {
	outcome := models.RequestOutcome{
		Endpoint:  endpoint.Name,
		Timestamp: c.now(),
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint.URL, nil)
	if err != nil {
		outcome.Reason = models.ReasonConnectionError
		return outcome
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		outcome.LatencyMs = elapsedMs(start)
		outcome.Reason, outcome.Aborted = classify(ctx, err)
		c.logFailure(endpoint, outcome, err)
		return outcome
	}
	defer resp.Body.Close()

	// Body completo: latência até o último byte e busca do conteúdo esperado em streaming
	matcher := newContentMatcher(endpoint.Expected)
	_, err = io.Copy(matcher, resp.Body)
	outcome.LatencyMs = elapsedMs(start)
	if err != nil {
		outcome.Reason, outcome.Aborted = classify(ctx, err)
		c.logFailure(endpoint, outcome, err)
		return outcome
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		outcome.Reason = fmt.Sprintf("%s%d", models.ReasonBadStatusPrefix, resp.StatusCode)
		c.logFailure(endpoint, outcome, nil)
		return outcome
	}

	if !matcher.Found() {
		outcome.Reason = models.ReasonContentMismatch
		c.logFailure(endpoint, outcome, nil)
		return outcome
	}

	outcome.Success = true
	return outcome
}

// classify converte erro de transporte em reason.
// Cancelamento do contexto pai (fim forçado do drain, SIGINT) marca o probe como abortado.
func classify(parent context.Context, err error) (reason string, aborted bool) {
	if parent.Err() != nil {
		return "cancelled", true
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return models.ReasonTimeout, false
	}
	return models.ReasonConnectionError, false
}

func (c *Client) logFailure(endpoint models.Endpoint, outcome models.RequestOutcome, err error) {
	event := log.Debug().
		Str("endpoint", endpoint.Name).
		Str("url", endpoint.URL).
		Str("reason", outcome.Reason).
		Float64("latency_ms", outcome.LatencyMs)
	if err != nil {
		event = event.Err(err)
	}
	event.Msg("Probe failed")
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
