package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"k8s-dev-loadtest/internal/config"
	"k8s-dev-loadtest/internal/kube"
	"k8s-dev-loadtest/internal/monitoring/collector"
	"k8s-dev-loadtest/internal/report"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var collectOpts struct {
	prometheusURL string
	namespaces    string
	hosts         string
	minutes       int
	outputDir     string
	outputFormat  string
	timeout       time.Duration

	urls       string
	discover   bool
	kubeconfig string
	context    string
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect pod and ingress metrics from Prometheus",
	Long: `Queries Prometheus for per-pod CPU (rate and p95), memory and network usage and
for per-host ingress request count, rate and latency percentiles over the last
--duration minutes. Failed queries do not abort the collection: the values are
reported as absent and the query is listed under failures.

Targets:
  --namespaces / --hosts  explicit lists (comma-separated)
  --urls                  derive namespaces and hosts from an endpoints file
  --discover              add the hosts of Ingress resources found in the namespaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(collectOpts.outputFormat)
		if err != nil {
			return configError("--output-format", err)
		}
		if collectOpts.minutes <= 0 {
			return configError("--duration", fmt.Errorf("duration must be at least 1 minute"))
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		namespaces, hosts, err := resolveCollectTargets(ctx)
		if err != nil {
			return withExitCode(err)
		}

		source := &collector.PrometheusSource{
			URL:     collectOpts.prometheusURL,
			Timeout: collectOpts.timeout,
			Config:  collector.DefaultConfig(),
		}
		metrics := source.Collect(ctx, namespaces, hosts, time.Duration(collectOpts.minutes)*time.Minute)

		writer, err := report.NewWriter(collectOpts.outputDir)
		if err != nil {
			return withExitCode(err)
		}
		paths, err := writer.WriteResources(metrics, format)
		if err != nil {
			return withExitCode(err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "📊 Pods: %d | Hosts: %d | Failed queries: %d\n",
			len(metrics.Pods), len(metrics.Ingress), len(metrics.Failures))
		for _, path := range paths {
			fmt.Fprintf(out, "📄 %s\n", path)
		}
		return nil
	},
}

// resolveCollectTargets flags explícitas > --urls > defaults; --discover soma hosts do cluster
func resolveCollectTargets(ctx context.Context) ([]string, []string, error) {
	namespaces := config.SplitList(collectOpts.namespaces)
	hosts := config.SplitList(collectOpts.hosts)

	if collectOpts.urls != "" {
		endpoints, _, err := config.ResolveEndpoints(config.EndpointSource{URLs: collectOpts.urls})
		if err != nil {
			return nil, nil, err
		}
		fromNS, fromHosts := config.TargetsFromEndpoints(endpoints)
		if len(namespaces) == 0 {
			namespaces = fromNS
		}
		if len(hosts) == 0 {
			hosts = fromHosts
		}
	}

	if len(namespaces) == 0 {
		namespaces = append([]string{}, config.DefaultNamespaces...)
	}
	if len(hosts) == 0 && !collectOpts.discover {
		hosts = append([]string{}, config.DefaultHosts...)
	}

	if collectOpts.discover {
		client, err := kube.NewClient(collectOpts.kubeconfig, collectOpts.context, collectOpts.timeout)
		if err != nil {
			return nil, nil, &config.ConfigError{Source: "kubeconfig", Err: err}
		}
		discovered, err := client.ListIngressHosts(ctx, namespaces)
		if err != nil {
			log.Warn().Err(err).Msg("Ingress discovery failed, using configured hosts only")
		}
		hosts = kube.MergeHosts(hosts, discovered)
	}

	log.Debug().
		Strs("namespaces", namespaces).
		Strs("hosts", hosts).
		Msg("Collection targets")

	return namespaces, hosts, nil
}

func init() {
	f := collectCmd.Flags()

	f.StringVar(&collectOpts.prometheusURL, "prometheus-url", "http://localhost:9090", "Prometheus base URL")
	f.StringVar(&collectOpts.namespaces, "namespaces", "", "Comma-separated namespaces (default: default,ingress-nginx)")
	f.StringVar(&collectOpts.hosts, "hosts", "", "Comma-separated ingress hosts (default: foo.localhost,bar.localhost)")
	f.IntVar(&collectOpts.minutes, "duration", 5, "Collection window in minutes")
	f.StringVar(&collectOpts.outputDir, "output-dir", "results", "Directory for resource_metrics.*")
	f.StringVar(&collectOpts.outputFormat, "output-format", string(report.FormatBoth), "Output format: json, markdown or both")
	f.DurationVar(&collectOpts.timeout, "timeout", 30*time.Second, "Timeout for Prometheus and Kubernetes API calls")

	f.StringVar(&collectOpts.urls, "urls", "", "Endpoints (inline JSON or file) to derive namespaces and hosts from")
	f.BoolVar(&collectOpts.discover, "discover", false, "Discover hosts from Ingress resources in the namespaces")
	f.StringVar(&collectOpts.kubeconfig, "kubeconfig", "", "Path to kubeconfig file (default: $KUBECONFIG or $HOME/.kube/config)")
	f.StringVar(&collectOpts.context, "context", "", "Kubernetes context (default: current-context)")

	rootCmd.AddCommand(collectCmd)
}
