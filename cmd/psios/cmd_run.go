package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/config"
	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/experiment"
	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/kuramoto"
	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/logging"
	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/store"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a coherence experiment",
		Long: `Run a coherence experiment: tick the engine for the configured number
of cycles, apply any scheduled perturbations, and judge whether the
final per-cluster coherences settled on the 0.750 attractor.

Examples:
  psios run                            # Default 500-cycle run
  psios run --seed 42 --cycles 1000    # Reproducible longer run
  psios run --config experiment.yaml   # Scheduled perturbations from file
  psios run --out runs.db              # Record the run in SQLite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				cfg.Engine.Seed, _ = cmd.Flags().GetInt64("seed")
			}
			if cmd.Flags().Changed("cycles") {
				cfg.Experiment.TotalCycles, _ = cmd.Flags().GetInt("cycles")
			}
			if out, _ := cmd.Flags().GetString("out"); out != "" {
				cfg.Store.Path = out
			}

			engine, err := kuramoto.New(cfg.Engine)
			if err != nil {
				return err
			}

			logger := logging.NewLogger(cfg.Logging.Level, os.Stderr)
			var trace *logging.CoherenceLogger
			if cfg.Logging.TracePath != "" {
				trace = logging.NewCoherenceLogger(cfg.Logging.TracePath, cfg.Logging.Level)
				defer trace.Close()
			}

			runner := experiment.NewRunner(engine, logger, trace)
			results, err := runner.Run(cmd.Context(), cfg.Experiment)
			if err != nil {
				return err
			}

			if cfg.Store.Path != "" {
				if err := saveResults(cmd, cfg, results); err != nil {
					return err
				}
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(results)
			}
			printResults(results)
			return nil
		},
	}

	cmd.Flags().Int64("seed", 0, "Override the engine seed")
	cmd.Flags().Int("cycles", 0, "Override the run length in cycles")
	cmd.Flags().String("out", "", "SQLite file to record the run in (overrides store.path)")

	return cmd
}

// saveResults records a finished run in the configured SQLite store.
func saveResults(cmd *cobra.Command, cfg *config.Config, results experiment.Results) error {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening results store: %w", err)
	}
	defer st.Close()

	if err := st.SaveRun(cmd.Context(), results, configJSON); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// printResults writes the human-readable run report.
func printResults(res experiment.Results) {
	fmt.Printf("Run %s (seed %d, %d cycles)\n\n", res.RunID, res.Seed, res.Cycles)

	fmt.Printf("Global coherence: %.4f\n", res.GlobalCoherence)
	finals := make([]string, len(res.FinalCoherences))
	for i, c := range res.FinalCoherences {
		finals[i] = fmt.Sprintf("%.4f", c)
	}
	fmt.Printf("Final coherences: %s\n\n", strings.Join(finals, " "))

	printVerdict(os.Stdout, res.Verdict)
	fmt.Println()

	if len(res.ReturnTimes) > 0 {
		fmt.Println("Return times:")
		for _, rt := range res.ReturnTimes {
			fmt.Printf("  %s\n", formatReturnTime(rt))
		}
		fmt.Println()
	}

	if len(res.SyncEvents) > 0 {
		first := res.SyncEvents[0]
		fmt.Printf("Sync events: %d (first at cycle %d, global %.4f)\n",
			len(res.SyncEvents), first.Cycle, first.GlobalCoherence)
	}
	if len(res.Transitions) > 0 {
		fmt.Printf("Mode transitions: %d\n", len(res.Transitions))
	}

	fmt.Println("Stability:exploration balance:")
	for _, b := range res.Balance {
		fmt.Printf("  %s: %d:%d (ratio %.2f, %s)\n",
			b.Domain, b.StabilityCycles, b.ExplorationCycles, b.Ratio, b.Status)
	}
}

// printVerdict writes the attractor judgment with its confidence interval.
func printVerdict(w io.Writer, v experiment.AttractorVerdict) {
	if v.IsAttractor {
		fmt.Fprintf(w, "✓ Attractor confirmed at %.4f\n", v.EstimatedValue)
	} else {
		fmt.Fprintf(w, "✗ No attractor: estimate %.4f\n", v.EstimatedValue)
	}
	fmt.Fprintf(w, "  stddev %.4f, confidence %.2f, 95%% bounds [%.4f, %.4f]\n",
		v.StdDev, v.Confidence, v.Bounds[0], v.Bounds[1])
}

// formatReturnTime renders one return-time measurement as a single line.
func formatReturnTime(rt experiment.ReturnTimeRecord) string {
	if rt.ReturnCycles == nil {
		return fmt.Sprintf("%s: no return within the window (released at cycle %d, target %.2f)",
			rt.Domain, rt.ReleasedAt, rt.Target)
	}
	return fmt.Sprintf("%s: returned in %d cycles after release at cycle %d (target %.2f)",
		rt.Domain, *rt.ReturnCycles, rt.ReleasedAt, rt.Target)
}
