package generator

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"k8s-dev-loadtest/internal/models"
	"k8s-dev-loadtest/internal/probe"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Config configuração do gerador de tráfego
type Config struct {
	Users     int           // Virtual users simultâneos
	SpawnRate float64       // Users iniciados por segundo durante o ramp-up
	Duration  time.Duration // Duração total (inclui ramp-up)
	MinWait   time.Duration // Think time mínimo (default: 100ms)
	MaxWait   time.Duration // Think time máximo (default: 500ms)
	Grace     time.Duration // Tempo para probes em andamento terminarem (default: 10s)
	Seed      uint64        // 0 = baseado no relógio
}

// DefaultConfig retorna configuração padrão
func DefaultConfig() Config {
	return Config{
		Users:     10,
		SpawnRate: 2,
		Duration:  60 * time.Second,
		MinWait:   100 * time.Millisecond,
		MaxWait:   500 * time.Millisecond,
		Grace:     10 * time.Second,
	}
}

// Validate verifica a configuração
func (c Config) Validate() error {
	if c.Users <= 0 {
		return errors.New("users must be greater than zero")
	}
	if c.SpawnRate <= 0 {
		return errors.New("spawn rate must be greater than zero")
	}
	if c.Duration <= 0 {
		return errors.New("duration must be greater than zero")
	}
	if c.MinWait < 0 || c.MaxWait < c.MinWait {
		return errors.New("think time must satisfy 0 <= min-wait <= max-wait")
	}
	return nil
}

// Recorder recebe cada outcome e o número de users ativos (self metrics)
type Recorder interface {
	Observe(outcome models.RequestOutcome)
	SetActiveUsers(n int)
}

// Result outcomes coletados durante a execução
type Result struct {
	Outcomes    []models.RequestOutcome
	Started     time.Time
	Finished    time.Time
	Spawned     int  // Users efetivamente iniciados
	Interrupted bool // Contexto pai cancelado antes do fim da duração
}

// Elapsed duração efetiva da execução
func (r *Result) Elapsed() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Generator dispara virtual users contra um Prober
type Generator struct {
	prober   probe.Prober
	cfg      Config
	recorder Recorder

	// OnPhase é chamado a cada transição RAMPING_UP / STEADY / DRAINING
	OnPhase func(phase models.RunPhase)

	newSource func(user int) rand.Source
}

// New cria um novo gerador
func New(prober probe.Prober, cfg Config) *Generator {
	defaults := DefaultConfig()
	if cfg.Grace <= 0 {
		cfg.Grace = defaults.Grace
	}
	if cfg.MinWait == 0 && cfg.MaxWait == 0 {
		cfg.MinWait, cfg.MaxWait = defaults.MinWait, defaults.MaxWait
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &Generator{
		prober: prober,
		cfg:    cfg,
		newSource: func(user int) rand.Source {
			return rand.NewPCG(seed, uint64(user))
		},
	}
}

// WithRecorder registra um Recorder
func (g *Generator) WithRecorder(r Recorder) *Generator {
	g.recorder = r
	return g
}

// WithSource substitui a fonte aleatória por user (testes determinísticos)
func (g *Generator) WithSource(fn func(user int) rand.Source) *Generator {
	g.newSource = fn
	return g
}

// Run executa o load test até a duração expirar ou ctx ser cancelado.
// Nenhum probe inicia após o deadline; probes em andamento têm Grace para terminar.
// Cancelamento de ctx ainda retorna os outcomes coletados até o momento.
func (g *Generator) Run(ctx context.Context, endpoints []models.Endpoint) (*Result, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("no endpoints to probe")
	}
	if err := g.cfg.Validate(); err != nil {
		return nil, err
	}

	result := &Result{Started: time.Now()}
	deadline := result.Started.Add(g.cfg.Duration)

	runCtx, stopRun := context.WithDeadline(ctx, deadline)
	defer stopRun()

	// Probes usam contexto próprio: continuam após o deadline até o fim do grace
	probeCtx, abortProbes := context.WithCancel(context.WithoutCancel(ctx))
	defer abortProbes()

	log.Info().
		Int("users", g.cfg.Users).
		Float64("spawn_rate", g.cfg.SpawnRate).
		Dur("duration", g.cfg.Duration).
		Int("endpoints", len(endpoints)).
		Msg("Starting load test")

	g.phase(models.PhaseRampingUp)

	buffers := make([][]models.RequestOutcome, g.cfg.Users)
	var (
		wg     sync.WaitGroup
		active int
		mu     sync.Mutex
	)

	setActive := func(delta int) {
		if g.recorder == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		active += delta
		g.recorder.SetActiveUsers(active)
	}

	limiter := rate.NewLimiter(rate.Limit(g.cfg.SpawnRate), 1)
	for user := 0; user < g.cfg.Users; user++ {
		if err := limiter.Wait(runCtx); err != nil {
			break
		}
		if !time.Now().Before(deadline) {
			break
		}

		wg.Add(1)
		result.Spawned++
		setActive(1)
		go func(id int) {
			defer wg.Done()
			defer setActive(-1)
			buffers[id] = g.user(runCtx, probeCtx, deadline, id, endpoints)
		}(user)
	}

	if result.Spawned == g.cfg.Users && runCtx.Err() == nil {
		log.Debug().Int("users", result.Spawned).Msg("Ramp-up complete")
		g.phase(models.PhaseSteady)
	}

	<-runCtx.Done()
	result.Interrupted = ctx.Err() != nil && time.Now().Before(deadline)
	g.phase(models.PhaseDraining)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	grace := time.NewTimer(g.cfg.Grace)
	defer grace.Stop()

	select {
	case <-done:
	case <-grace.C:
		log.Warn().
			Dur("grace", g.cfg.Grace).
			Msg("Grace period expired, aborting in-flight probes")
		abortProbes()
		<-done
	}

	result.Finished = time.Now()
	for _, buf := range buffers {
		result.Outcomes = append(result.Outcomes, buf...)
	}

	log.Info().
		Int("outcomes", len(result.Outcomes)).
		Int("users", result.Spawned).
		Dur("elapsed", result.Elapsed()).
		Bool("interrupted", result.Interrupted).
		Msg("Load test finished")

	return result, nil
}

// user loop de um virtual user: escolhe endpoint, probe, think time, repete
func (g *Generator) user(runCtx, probeCtx context.Context, deadline time.Time, id int, endpoints []models.Endpoint) []models.RequestOutcome {
	rng := rand.New(g.newSource(id))
	var outcomes []models.RequestOutcome

	for {
		if runCtx.Err() != nil || !time.Now().Before(deadline) {
			return outcomes
		}

		endpoint := endpoints[rng.IntN(len(endpoints))]
		outcome := g.prober.Probe(probeCtx, endpoint)
		outcomes = append(outcomes, outcome)
		if g.recorder != nil && !outcome.Aborted {
			g.recorder.Observe(outcome)
		}

		wait := thinkTime(rng, g.cfg.MinWait, g.cfg.MaxWait)
		timer := time.NewTimer(wait)
		select {
		case <-runCtx.Done():
			timer.Stop()
			return outcomes
		case <-timer.C:
		}
	}
}

// thinkTime sorteia uma espera uniforme em [lo, hi]
func thinkTime(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rng.Int64N(int64(hi-lo)+1))
}

func (g *Generator) phase(p models.RunPhase) {
	log.Debug().Str("phase", string(p)).Msg("Load test phase")
	if g.OnPhase != nil {
		g.OnPhase(p)
	}
}
