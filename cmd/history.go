package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"k8s-dev-loadtest/internal/storage"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var historyOpts struct {
	dbPath string
	limit  int
	show   string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previous load test runs",
	Long:  `Lists the most recent runs stored by "loadtest run --history-db". Use --show <run-id> to print the stored summary JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if _, err := os.Stat(historyOpts.dbPath); errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(out, "ℹ️  No history found at %s\n", historyOpts.dbPath)
			return nil
		}

		cfg := storage.DefaultHistoryConfig()
		cfg.DBPath = historyOpts.dbPath
		cfg.MaxRuns = 0 // leitura não aplica retenção

		history, err := storage.NewHistory(cfg)
		if err != nil {
			return withExitCode(err)
		}
		defer history.Close()

		if historyOpts.show != "" {
			rec, err := history.GetRun(cmd.Context(), historyOpts.show)
			if err != nil {
				if errors.Is(err, storage.ErrRunNotFound) {
					return configError("--show", err)
				}
				return withExitCode(err)
			}
			fmt.Fprint(out, rec.Data)
			return nil
		}

		runs, err := history.ListRuns(cmd.Context(), historyOpts.limit)
		if err != nil {
			return withExitCode(err)
		}
		printRuns(out, runs)
		return nil
	},
}

func printRuns(w io.Writer, runs []storage.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "ℹ️  No runs recorded yet")
		return
	}

	header := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	pass := lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	fail := lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	fmt.Fprintln(w, header.Render(fmt.Sprintf("%-36s  %-20s  %5s  %8s  %7s  %9s  %9s  %s",
		"RUN ID", "STARTED", "USERS", "REQS", "FAIL%", "P95(ms)", "P99(ms)", "RESULT")))

	for _, run := range runs {
		result := pass.Render("PASS")
		if !run.Passed {
			result = fail.Render("FAIL")
		}
		if run.Interrupted {
			result += " (interrupted)"
		}
		fmt.Fprintf(w, "%-36s  %-20s  %5d  %8d  %7.2f  %9.2f  %9.2f  %s\n",
			run.ID, run.StartedAt.Format("2006-01-02 15:04:05"), run.Users, run.TotalRequests,
			run.FailureRate, run.P95Ms, run.P99Ms, result)
	}
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyOpts.dbPath, "history-db", storage.DefaultHistoryConfig().DBPath, "SQLite run history path")
	f.IntVar(&historyOpts.limit, "limit", 20, "Number of runs to list")
	f.StringVar(&historyOpts.show, "show", "", "Print the stored summary JSON of this run")

	rootCmd.AddCommand(historyCmd)
}
