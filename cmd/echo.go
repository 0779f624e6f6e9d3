package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"k8s-dev-loadtest/internal/echo"

	"github.com/spf13/cobra"
)

var echoOpts echo.Config

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "Start an HTTP echo target",
	Long: `Serves --text on every path and /healthz for readiness checks.
--fail-rate answers 500 for a fraction of the requests (failure drills).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		echoOpts.Debug = debug

		server, err := echo.NewServer(echoOpts)
		if err != nil {
			return configError("echo", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withExitCode(server.Start(ctx))
	},
}

func init() {
	defaults := echo.DefaultConfig()
	f := echoCmd.Flags()

	f.IntVar(&echoOpts.Port, "port", defaults.Port, "HTTP port")
	f.StringVar(&echoOpts.Text, "text", defaults.Text, "Response body")
	f.Float64Var(&echoOpts.FailRate, "fail-rate", 0, "Fraction of requests answered with 500 (0-1)")
	f.Uint64Var(&echoOpts.Seed, "seed", 0, "Random seed for failure injection (0 = time based)")

	rootCmd.AddCommand(echoCmd)
}
