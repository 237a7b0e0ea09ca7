package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yairfalse/lightsout/storage"
)

var historyLimit int

// historyCmd reads past runs from the local history store
var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past runs",
	Long: `List runs recorded in the history store (reporting.history_path),
newest first. Pass a run id to show every resource result of that run.`,
	Example: `  lightsout history                  # Last 20 runs
  lightsout history --limit 100      # Last 100 runs
  lightsout history 1b4e28ba-2fa1    # One run in detail`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	if a.cfg.Reporting.HistoryPath == "" {
		return errors.New("reporting.history_path is not configured")
	}

	store, err := storage.OpenHistoryStore(a.cfg.Reporting.HistoryPath)
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer func() { _ = store.Close() }()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		rec, err := store.GetRun(args[0])
		if err != nil {
			return err
		}
		return printResult(out, &rec.Result, outputFormat)
	}

	runs, err := store.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	return printRuns(out, runs, outputFormat)
}
