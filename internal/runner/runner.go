package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"k8s-dev-loadtest/internal/analyzer"
	"k8s-dev-loadtest/internal/config"
	"k8s-dev-loadtest/internal/generator"
	"k8s-dev-loadtest/internal/models"
	"k8s-dev-loadtest/internal/monitoring/selfmetrics"
	"k8s-dev-loadtest/internal/probe"
	"k8s-dev-loadtest/internal/report"
	"k8s-dev-loadtest/internal/stats"
	"k8s-dev-loadtest/internal/storage"
	"k8s-dev-loadtest/internal/threshold"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// BaselineFromHistory valor de --baseline que usa a última execução gravada
const BaselineFromHistory = "history"

// pushTimeout limite para o envio ao Pushgateway
const pushTimeout = 10 * time.Second

// ResourceSource coleta métricas de recursos depois do tráfego
type ResourceSource interface {
	Collect(ctx context.Context, namespaces, hosts []string, window time.Duration) *models.ResourceMetrics
}

// ResourceOptions coleta opcional de recursos juntada ao relatório
type ResourceOptions struct {
	Source     ResourceSource
	Namespaces []string // vazio = derivado dos endpoints
	Hosts      []string // vazio = derivado dos endpoints
	Window     time.Duration
}

// Options parâmetros de uma execução
type Options struct {
	Endpoints  config.EndpointSource
	Generator  generator.Config
	Probe      probe.Config
	Thresholds models.ThresholdConfig

	OutputDir      string
	CSV            bool
	HistoryDB      string // vazio desativa o histórico
	Baseline       string // caminho de summary.json ou "history"
	PushgatewayURL string

	Resources *ResourceOptions // nil = sem coleta
}

// Outcome resultado de uma execução
type Outcome struct {
	Report *report.LoadTestReport
	Paths  []string
	Phase  models.RunPhase
}

// Passed indica se o veredito passou
func (o *Outcome) Passed() bool {
	return o.Report != nil && o.Report.Verdict != nil && o.Report.Verdict.Passed
}

// Runner conduz o pipeline CONFIGURED -> ... -> DONE
type Runner struct {
	opts    Options
	runID   string
	prober  probe.Prober
	metrics *selfmetrics.Metrics

	mu        sync.Mutex
	phase     models.RunPhase
	lastPhase models.RunPhase // última fase de tráfego

	// OnPhase é chamado a cada transição aceita
	OnPhase func(phase models.RunPhase)
}

// New cria um runner com um novo run ID
func New(opts Options) *Runner {
	return &Runner{
		opts:    opts,
		runID:   uuid.New().String(),
		metrics: selfmetrics.New(),
		phase:   models.PhaseConfigured,
	}
}

// WithProber substitui o cliente HTTP (testes)
func (r *Runner) WithProber(p probe.Prober) *Runner {
	r.prober = p
	return r
}

// RunID identificador da execução
func (r *Runner) RunID() string {
	return r.runID
}

// Phase fase atual
func (r *Runner) Phase() models.RunPhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Metrics métricas da execução
func (r *Runner) Metrics() *selfmetrics.Metrics {
	return r.metrics
}

func (r *Runner) transition(to models.RunPhase) {
	r.mu.Lock()
	from := r.phase
	if !models.CanTransition(from, to) {
		r.mu.Unlock()
		log.Warn().Str("from", string(from)).Str("to", string(to)).Msg("Ignoring invalid phase transition")
		return
	}
	r.phase = to
	switch to {
	case models.PhaseRampingUp, models.PhaseSteady, models.PhaseDraining:
		r.lastPhase = to
	}
	r.mu.Unlock()

	log.Info().Str("run_id", r.runID).Str("phase", string(to)).Msg("Phase changed")
	if r.OnPhase != nil {
		r.OnPhase(to)
	}
}

// Run executa o pipeline completo. Erros de configuração levam a FAILED antes de
// qualquer tráfego e são retornados como *config.ConfigError.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	endpoints, err := r.configure()
	if err != nil {
		r.transition(models.PhaseFailed)
		return &Outcome{Phase: r.Phase()}, err
	}

	var history *storage.History
	if r.opts.HistoryDB != "" {
		historyCfg := storage.DefaultHistoryConfig()
		historyCfg.DBPath = r.opts.HistoryDB
		history, err = storage.NewHistory(historyCfg)
		if err != nil {
			r.transition(models.PhaseFailed)
			return &Outcome{Phase: r.Phase()}, fmt.Errorf("failed to open run history: %w", err)
		}
		defer history.Close()
	}

	prober := r.prober
	if prober == nil {
		prober = probe.NewClient(r.opts.Probe)
	}

	gen := generator.New(prober, r.opts.Generator).WithRecorder(r.metrics)
	gen.OnPhase = r.transition

	result, err := gen.Run(ctx, endpoints)
	if err != nil {
		return &Outcome{Phase: r.Phase()}, fmt.Errorf("load test failed: %w", err)
	}

	// Passos seguintes rodam mesmo com ctx cancelado (relatório parcial)
	postCtx := context.WithoutCancel(ctx)

	summary := stats.Aggregate(endpoints, result.Outcomes, result.Elapsed())
	r.transition(models.PhaseAggregated)

	verdict := threshold.Evaluate(summary.Overall, r.opts.Thresholds)
	r.metrics.SetVerdict(verdict)
	r.transition(models.PhaseEvaluated)

	rep := &report.LoadTestReport{
		RunID:       r.runID,
		StartedAt:   result.Started.UTC(),
		FinishedAt:  result.Finished.UTC(),
		ElapsedS:    stats.Round2(result.Elapsed().Seconds()),
		Interrupted: result.Interrupted,
		LastPhase:   r.lastTrafficPhase(),
		Settings:    r.settings(endpoints),
		Endpoints:   summary.Endpoints,
		Overall:     summary.Overall,
		Verdict:     &verdict,
	}

	rep.Resources = r.collectResources(ctx, endpoints, result.Interrupted)
	rep.Comparison = r.compare(postCtx, history, summary)

	writer, err := report.NewWriter(r.opts.OutputDir)
	if err != nil {
		return &Outcome{Report: rep, Phase: r.Phase()}, err
	}
	paths, err := writer.WriteSummary(rep)
	if err != nil {
		return &Outcome{Report: rep, Phase: r.Phase()}, err
	}
	if r.opts.CSV {
		path, err := writer.WriteCSV(rep)
		if err != nil {
			return &Outcome{Report: rep, Paths: paths, Phase: r.Phase()}, err
		}
		paths = append(paths, path)
	}
	if rep.Resources != nil {
		resPaths, err := writer.WriteResources(rep.Resources, report.FormatBoth)
		if err != nil {
			return &Outcome{Report: rep, Paths: paths, Phase: r.Phase()}, err
		}
		paths = append(paths, resPaths...)
	}
	r.transition(models.PhaseReported)

	log.Info().
		Str("run_id", r.runID).
		Strs("files", paths).
		Str("result", verdict.Result()).
		Msg("Report written")

	if history != nil {
		if err := r.saveHistory(postCtx, history, rep); err != nil {
			return &Outcome{Report: rep, Paths: paths, Phase: r.Phase()}, err
		}
	}

	if r.opts.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(postCtx, pushTimeout)
		if err := r.metrics.Push(pushCtx, r.opts.PushgatewayURL, r.runID); err != nil {
			log.Warn().Err(err).Msg("Failed to push self metrics")
		}
		cancel()
	}

	r.transition(models.PhaseDone)
	return &Outcome{Report: rep, Paths: paths, Phase: r.Phase()}, nil
}

// configure resolve endpoints e valida parâmetros
func (r *Runner) configure() ([]models.Endpoint, error) {
	if err := r.opts.Generator.Validate(); err != nil {
		return nil, &config.ConfigError{Source: "settings", Err: err}
	}
	t := r.opts.Thresholds
	if t.P95Ms < 0 || t.P99Ms < 0 || t.MaxErrorRate < 0 {
		return nil, &config.ConfigError{Source: "thresholds", Err: errors.New("thresholds must not be negative")}
	}
	if res := r.opts.Resources; res != nil && res.Window <= 0 {
		return nil, &config.ConfigError{Source: "metrics-window", Err: fmt.Errorf("metrics window must be positive, got %s", res.Window)}
	}

	endpoints, kind, err := config.ResolveEndpoints(r.opts.Endpoints)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("run_id", r.runID).
		Str("source", string(kind)).
		Int("endpoints", len(endpoints)).
		Msg("Endpoints resolved")

	return endpoints, nil
}

func (r *Runner) settings(endpoints []models.Endpoint) models.RunSettings {
	g := r.opts.Generator
	return models.RunSettings{
		Users:      g.Users,
		SpawnRate:  g.SpawnRate,
		Duration:   g.Duration,
		DurationS:  g.Duration.Seconds(),
		Thresholds: r.opts.Thresholds,
		Endpoints:  endpoints,
	}
}

func (r *Runner) lastTrafficPhase() models.RunPhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPhase
}

// collectResources roda o collector depois do tráfego (nunca intercalado com ele)
func (r *Runner) collectResources(ctx context.Context, endpoints []models.Endpoint, interrupted bool) *models.ResourceMetrics {
	opts := r.opts.Resources
	if opts == nil || opts.Source == nil {
		return nil
	}
	if interrupted {
		log.Warn().Msg("Run interrupted, skipping resource collection")
		return nil
	}

	namespaces, hosts := config.TargetsFromEndpoints(endpoints)
	if len(opts.Namespaces) > 0 {
		namespaces = opts.Namespaces
	}
	if len(opts.Hosts) > 0 {
		hosts = opts.Hosts
	}

	return opts.Source.Collect(ctx, namespaces, hosts, opts.Window)
}

// compare carrega o baseline (arquivo ou histórico). Falhas só geram warning.
func (r *Runner) compare(ctx context.Context, history *storage.History, current *stats.Summary) *analyzer.Comparison {
	if r.opts.Baseline == "" {
		return nil
	}

	var (
		baseline *report.LoadTestReport
		err      error
	)

	if r.opts.Baseline == BaselineFromHistory {
		if history == nil {
			log.Warn().Msg("Baseline from history requested but history is disabled")
			return nil
		}
		var rec *storage.RunRecord
		rec, err = history.LatestRun(ctx, r.runID)
		if err == nil {
			baseline, err = report.ParseSummary([]byte(rec.Data))
		}
	} else {
		baseline, err = report.LoadSummary(r.opts.Baseline)
	}

	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) || errors.Is(err, os.ErrNotExist) {
			log.Info().Str("baseline", r.opts.Baseline).Msg("No baseline available, skipping comparison")
		} else {
			log.Warn().Err(err).Str("baseline", r.opts.Baseline).Msg("Failed to load baseline")
		}
		return nil
	}

	comparison := analyzer.NewComparator(baseline.Summary(), baseline.RunID, nil).Compare(current)
	log.Info().
		Str("baseline", baseline.RunID).
		Str("overall", string(comparison.Overall.Status)).
		Str("endpoints", comparison.Summary.String()).
		Msg("Baseline comparison")

	return comparison
}

func (r *Runner) saveHistory(ctx context.Context, history *storage.History, rep *report.LoadTestReport) error {
	data, err := report.RenderJSON(rep)
	if err != nil {
		return err
	}

	rec := storage.RunRecord{
		ID:            rep.RunID,
		StartedAt:     rep.StartedAt,
		FinishedAt:    rep.FinishedAt,
		Users:         rep.Settings.Users,
		DurationS:     rep.Settings.DurationS,
		TotalRequests: rep.Overall.RequestCount,
		TotalFailures: rep.Overall.FailureCount,
		FailureRate:   rep.Overall.FailureRate,
		P95Ms:         rep.Overall.P95Ms,
		P99Ms:         rep.Overall.P99Ms,
		Passed:        rep.Verdict != nil && rep.Verdict.Passed,
		Interrupted:   rep.Interrupted,
		Data:          string(data),
	}

	if err := history.SaveRun(ctx, rec); err != nil {
		return fmt.Errorf("failed to save run history: %w", err)
	}
	return nil
}
