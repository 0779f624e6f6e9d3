package cmd

import (
	"fmt"
	"io"
	"os"

	"k8s-dev-loadtest/internal/config"
	"k8s-dev-loadtest/internal/logs"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	debug      bool
	logJSON    bool
	logFile    string
	configFile string
	envFiles   []string

	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Load testing and metrics collection for local Kubernetes dev environments",
	Long: `Exercises HTTP services exposed by a local Kubernetes cluster (Kind + ingress-nginx)
and records latency, throughput and resource metrics.

Commands:
- run:      drive virtual users against the configured endpoints, evaluate thresholds
            and write summary.json / summary.md
- collect:  query Prometheus for pod and ingress metrics and write resource_metrics.*
- echo:     start a simple HTTP echo target for local tests
- history:  list previous runs stored in the SQLite history

Every flag can also be set through an environment variable with the LOADTEST_ prefix
(--spawn-rate => LOADTEST_SPAWN_RATE) or through a --config file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env antes do viper para que as variáveis carregadas também valham para as flags
		loaded, err := config.LoadEnvFiles(envFiles)
		if err != nil {
			return configError("--env-file", err)
		}

		v, err := newViper(configFile)
		if err != nil {
			return configError(configFile, err)
		}
		if err := bindFlags(cmd, v); err != nil {
			return configError("environment", err)
		}

		closer, err := logs.Setup(logs.Options{Debug: debug, JSON: logJSON, File: logFile})
		if err != nil {
			return configError("--log-file", err)
		}
		logCloser = closer

		log.Debug().
			Int("env_files", loaded).
			Str("config", v.ConfigFileUsed()).
			Str("command", cmd.Name()).
			Msg("Configuration loaded")
		return nil
	},
}

// closeLogFile fecha o --log-file. Registrado via cobra.OnFinalize, que também roda quando RunE falha.
func closeLogFile() {
	if logCloser == nil {
		return
	}
	if err := logCloser.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
	}
	logCloser = nil
}

// Execute executa o comando raiz. O erro retornado carrega o exit code (ver ExitCode).
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnFinalize(closeLogFile)

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false,
		"Write logs as JSON lines instead of the console format")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Also write JSON logs to this file (rotated at 10MB)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Config file (yaml, toml or json) with flag values")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env", ".env.local"},
		"Environment files loaded before resolving flags (missing files are ignored)")
}
