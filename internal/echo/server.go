package echo

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Config configuração do echo server
type Config struct {
	Port     int     // Porta HTTP (default: 5678)
	Text     string  // Texto retornado (default: echo)
	FailRate float64 // Fração de respostas 500 (0-1)
	Debug    bool
	Seed     uint64 // 0 = baseado no relógio
}

// DefaultConfig retorna configuração padrão
func DefaultConfig() Config {
	return Config{
		Port: 5678,
		Text: "echo",
	}
}

// Server alvo HTTP simples para os load tests locais
type Server struct {
	router *gin.Engine
	config Config

	mu  sync.Mutex
	rng *rand.Rand

	served atomic.Int64
	failed atomic.Int64
}

// NewServer cria um novo echo server
func NewServer(config Config) (*Server, error) {
	if config.FailRate < 0 || config.FailRate > 1 {
		return nil, fmt.Errorf("fail rate must be between 0 and 1, got %v", config.FailRate)
	}
	if config.Port == 0 {
		config.Port = DefaultConfig().Port
	}
	if config.Text == "" {
		config.Text = DefaultConfig().Text
	}

	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router: gin.New(),
		config: config,
		rng:    rand.New(rand.NewPCG(seed, 0)),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// setupMiddleware configura os middlewares do servidor
func (s *Server) setupMiddleware() {
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "HEAD", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
	}))
	s.router.Use(s.loggingMiddleware())
	s.router.Use(gin.Recovery())
}

// loggingMiddleware registra cada requisição em debug
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.Request.URL.Path == "/healthz" {
			return
		}
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("host", c.Request.Host).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request served")
	}
}

// setupRoutes configura as rotas
func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"served": s.served.Load(),
			"failed": s.failed.Load(),
		})
	})

	// Qualquer outro caminho responde o texto configurado
	s.router.NoRoute(s.handleEcho)
}

func (s *Server) handleEcho(c *gin.Context) {
	s.served.Add(1)

	if s.shouldFail() {
		s.failed.Add(1)
		c.String(http.StatusInternalServerError, "injected failure")
		return
	}

	c.String(http.StatusOK, s.config.Text)
}

func (s *Server) shouldFail() bool {
	if s.config.FailRate <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.config.FailRate
}

// Handler retorna o http.Handler (usado em testes)
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start inicia o servidor e bloqueia até ctx ser cancelado
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", s.config.Port).
			Str("text", s.config.Text).
			Float64("fail_rate", s.config.FailRate).
			Msg("Echo server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("echo server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Info().
		Int64("served", s.served.Load()).
		Int64("failed", s.failed.Load()).
		Msg("Shutting down echo server")

	return srv.Shutdown(shutdownCtx)
}
