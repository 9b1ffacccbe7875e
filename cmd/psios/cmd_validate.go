package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/experiment"
	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/kuramoto"
	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/logging"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the coherence attractor across seeded runs",
		Long: `Validate the coherence attractor across seeded runs.

Repeats the configured experiment with consecutive seeds and reports how
often the final coherences settle on the 0.750 attractor. A healthy
configuration confirms the attractor in at least 95% of runs.

Examples:
  psios validate               # 20 runs with seeds 1..20
  psios validate --runs 50     # More runs, tighter estimate
  psios validate --seed 100    # Start seeding at 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			runs, _ := cmd.Flags().GetInt("runs")
			baseSeed, _ := cmd.Flags().GetInt64("seed")

			if runs < 1 {
				return fmt.Errorf("runs must be at least 1, got %d", runs)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger := logging.NewLogger(cfg.Logging.Level, os.Stderr)

			attractors := 0
			estimates := make([]float64, 0, runs)
			for i := 0; i < runs; i++ {
				engineCfg := cfg.Engine
				engineCfg.Seed = baseSeed + int64(i)

				engine, err := kuramoto.New(engineCfg)
				if err != nil {
					return err
				}
				results, err := experiment.NewRunner(engine, logger, nil).Run(cmd.Context(), cfg.Experiment)
				if err != nil {
					return fmt.Errorf("seed %d: %w", engineCfg.Seed, err)
				}

				if results.Verdict.IsAttractor {
					attractors++
				}
				estimates = append(estimates, results.Verdict.EstimatedValue)
			}

			fraction := float64(attractors) / float64(runs)
			passed := fraction >= 0.95

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
					"runs":       runs,
					"attractors": attractors,
					"fraction":   fraction,
					"passed":     passed,
					"estimates":  estimates,
				})
			}

			fmt.Printf("Validated %d runs (seeds %d..%d)\n\n", runs, baseSeed, baseSeed+int64(runs)-1)
			if passed {
				fmt.Printf("✓ Attractor confirmed in %d/%d runs (%.0f%%)\n", attractors, runs, fraction*100)
			} else {
				fmt.Printf("✗ Attractor confirmed in only %d/%d runs (%.0f%%, expected at least 95%%)\n",
					attractors, runs, fraction*100)
			}
			return nil
		},
	}

	cmd.Flags().Int("runs", 20, "Number of seeded runs")
	cmd.Flags().Int64("seed", 1, "First seed; later runs increment from here")

	return cmd
}
