package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"k8s-dev-loadtest/internal/config"
	"k8s-dev-loadtest/internal/generator"
	"k8s-dev-loadtest/internal/models"
	"k8s-dev-loadtest/internal/monitoring/collector"
	"k8s-dev-loadtest/internal/probe"
	"k8s-dev-loadtest/internal/report"
	"k8s-dev-loadtest/internal/runner"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runOpts struct {
	users     int
	spawnRate float64
	duration  time.Duration
	minWait   time.Duration
	maxWait   time.Duration
	grace     time.Duration
	timeout   time.Duration
	seed      uint64

	urls     string
	urlsFile string

	outputDir string
	csv       bool

	p95       float64
	p99       float64
	errorRate float64

	historyDB   string
	baseline    string
	pushgateway string

	prometheusURL string
	namespaces    string
	hosts         string
	metricsWindow time.Duration
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load test against the configured endpoints",
	Long: `Spawns virtual users at --spawn-rate until --users are running, holds them until
--duration elapses and drains in-flight requests. Each user picks a random endpoint,
probes it and waits a random think time between --min-wait and --max-wait.

Endpoints come from exactly one source:
  --urls       inline JSON array or path to a JSON/YAML file
  --urls-file  JSON/YAML file
  environment  LOADTEST_SERVICES (default foo,bar) with <SERVICE>_HOST / <SERVICE>_EXPECTED

Exit codes: 0 thresholds passed, 1 thresholds violated, 2 configuration error, 3 runtime error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out, err := runner.New(buildRunOptions()).Run(ctx)
		if err != nil {
			return withExitCode(err)
		}

		report.PrintSummary(cmd.OutOrStdout(), out.Report)
		for _, path := range out.Paths {
			fmt.Fprintf(cmd.OutOrStdout(), "📄 %s\n", path)
		}

		if !out.Passed() {
			return &ExitError{
				Code: ExitVerdictFailed,
				Err:  fmt.Errorf("thresholds violated: %d violation(s)", len(out.Report.Verdict.Violations)),
			}
		}
		return nil
	},
}

func buildRunOptions() runner.Options {
	probeCfg := probe.DefaultConfig()
	probeCfg.Timeout = runOpts.timeout

	opts := runner.Options{
		Endpoints: config.EndpointSource{
			URLs:     runOpts.urls,
			URLsFile: runOpts.urlsFile,
		},
		Generator: generator.Config{
			Users:     runOpts.users,
			SpawnRate: runOpts.spawnRate,
			Duration:  runOpts.duration,
			MinWait:   runOpts.minWait,
			MaxWait:   runOpts.maxWait,
			Grace:     runOpts.grace,
			Seed:      runOpts.seed,
		},
		Probe: probeCfg,
		Thresholds: models.ThresholdConfig{
			P95Ms:        runOpts.p95,
			P99Ms:        runOpts.p99,
			MaxErrorRate: runOpts.errorRate,
		},
		OutputDir:      runOpts.outputDir,
		CSV:            runOpts.csv,
		HistoryDB:      runOpts.historyDB,
		Baseline:       runOpts.baseline,
		PushgatewayURL: runOpts.pushgateway,
	}

	if runOpts.prometheusURL != "" {
		opts.Resources = &runner.ResourceOptions{
			Source:     &collector.PrometheusSource{URL: runOpts.prometheusURL, Config: collector.DefaultConfig()},
			Namespaces: config.SplitList(runOpts.namespaces),
			Hosts:      config.SplitList(runOpts.hosts),
			Window:     runOpts.metricsWindow,
		}
	}

	log.Debug().
		Int("users", opts.Generator.Users).
		Float64("spawn_rate", opts.Generator.SpawnRate).
		Dur("duration", opts.Generator.Duration).
		Str("output_dir", opts.OutputDir).
		Msg("Run options")

	return opts
}

func init() {
	defaults := generator.DefaultConfig()
	thresholds := models.DefaultThresholds()
	f := runCmd.Flags()

	f.IntVar(&runOpts.users, "users", defaults.Users, "Number of concurrent virtual users")
	f.Float64Var(&runOpts.spawnRate, "spawn-rate", defaults.SpawnRate, "Users started per second during ramp-up")
	f.DurationVar(&runOpts.duration, "duration", defaults.Duration, "Total run duration (ramp-up included)")
	f.DurationVar(&runOpts.minWait, "min-wait", defaults.MinWait, "Minimum think time between requests")
	f.DurationVar(&runOpts.maxWait, "max-wait", defaults.MaxWait, "Maximum think time between requests")
	f.DurationVar(&runOpts.grace, "grace", defaults.Grace, "Time for in-flight requests to finish after the deadline")
	f.DurationVar(&runOpts.timeout, "timeout", probe.DefaultConfig().Timeout, "Per request timeout")
	f.Uint64Var(&runOpts.seed, "seed", 0, "Random seed for endpoint selection and think time (0 = time based)")

	f.StringVar(&runOpts.urls, "urls", "", "Endpoints as inline JSON array or path to a JSON/YAML file")
	f.StringVar(&runOpts.urlsFile, "urls-file", "", "Endpoints file (JSON/YAML)")

	f.StringVar(&runOpts.outputDir, "output-dir", "results", "Directory for summary.json / summary.md")
	f.BoolVar(&runOpts.csv, "csv", false, "Also write stats.csv")

	f.Float64Var(&runOpts.p95, "threshold-p95", thresholds.P95Ms, "Maximum overall p95 latency (ms)")
	f.Float64Var(&runOpts.p99, "threshold-p99", thresholds.P99Ms, "Maximum overall p99 latency (ms)")
	f.Float64Var(&runOpts.errorRate, "threshold-error-rate", thresholds.MaxErrorRate, "Maximum overall error rate (%)")

	f.StringVar(&runOpts.historyDB, "history-db", "", "SQLite run history path (empty disables history)")
	f.StringVar(&runOpts.baseline, "baseline", "", `Baseline summary.json to compare with, or "history" for the last stored run`)
	f.StringVar(&runOpts.pushgateway, "pushgateway-url", "", "Push self metrics to this Prometheus Pushgateway")

	f.StringVar(&runOpts.prometheusURL, "prometheus-url", "", "Collect resource metrics from Prometheus after the run")
	f.StringVar(&runOpts.namespaces, "namespaces", "", "Namespaces for resource metrics (default: derived from endpoints)")
	f.StringVar(&runOpts.hosts, "hosts", "", "Ingress hosts for resource metrics (default: derived from endpoints)")
	f.DurationVar(&runOpts.metricsWindow, "metrics-window", 5*time.Minute, "Window for resource metrics queries")

	rootCmd.AddCommand(runCmd)
}
