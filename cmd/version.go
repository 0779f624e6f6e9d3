package cmd

import (
	"fmt"
	"runtime"
	runtimedebug "runtime/debug"

	"github.com/spf13/cobra"
)

// Version versão da aplicação (injetada via -ldflags "-X k8s-dev-loadtest/cmd.Version=...")
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the application version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "loadtest %s (%s, %s/%s)\n", resolveVersion(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

// resolveVersion usa a versão do módulo quando instalado via go install
func resolveVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := runtimedebug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
