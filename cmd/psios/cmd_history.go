package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/store"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs from the results store",
		Long: `List recorded runs from the results store, newest first. With a run ID,
show that run's verdict and measured return times.

Examples:
  psios history --db runs.db             # Last 20 runs
  psios history --db runs.db --limit 5   # Last 5 runs
  psios history <run-id> --db runs.db    # One run in detail`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")
			dbPath, _ := cmd.Flags().GetString("db")

			if dbPath == "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				dbPath = cfg.Store.Path
			}
			if dbPath == "" {
				return fmt.Errorf("no results store configured: set store.path or pass --db")
			}

			st, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("opening results store: %w", err)
			}
			defer st.Close()

			if len(args) == 1 {
				return showRun(cmd, st, args[0], jsonOut)
			}

			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(runs)
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs.")
				return nil
			}
			for _, r := range runs {
				mark := "✗"
				if r.Verdict.IsAttractor {
					mark = "✓"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s  seed %-6d %4d cycles  global %.4f  estimate %.4f  %s\n",
					mark, r.ID, r.Seed, r.Cycles, r.GlobalCoherence, r.Verdict.EstimatedValue, r.CreatedAt)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to list")
	cmd.Flags().String("db", "", "SQLite file to read (overrides store.path)")

	return cmd
}

// showRun prints one recorded run with its return-time measurements.
func showRun(cmd *cobra.Command, st *store.SQLiteResultsStore, id string, jsonOut bool) error {
	run, err := st.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}
	returns, err := st.ReturnTimes(cmd.Context(), id)
	if err != nil {
		return err
	}

	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
			"run":          run,
			"return_times": returns,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (seed %d, %d clusters, %d cycles, created %s)\n\n",
		run.ID, run.Seed, run.Clusters, run.Cycles, run.CreatedAt)
	fmt.Fprintf(out, "Global coherence: %.4f\n", run.GlobalCoherence)
	printVerdict(out, run.Verdict)

	if len(returns) > 0 {
		fmt.Fprintln(out, "\nReturn times:")
		for _, rt := range returns {
			fmt.Fprintf(out, "  %s\n", formatReturnTime(rt))
		}
	}
	return nil
}
