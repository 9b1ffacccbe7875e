package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/experiment"
	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/store"
)

// newTestRootCmd creates a root command with persistent flags for testing subcommands
func newTestRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "psios",
	}
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file")
	return rootCmd
}

// isolateEnv points HOME at a temp directory and clears psios environment
// overrides so tests never read a developer's real config.
// MUST be called for any test that loads config.
func isolateEnv(t *testing.T) {
	t.Helper()
	tmpHome := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(tmpHome, 0700); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpHome)
	t.Cleanup(func() {
		os.Setenv("HOME", oldHome)
	})

	for _, key := range []string{"PSIOS_LOG_LEVEL", "PSIOS_TRACE_PATH", "PSIOS_STORE_PATH", "PSIOS_SEED"} {
		old, had := os.LookupEnv(key)
		os.Unsetenv(key)
		if had {
			t.Cleanup(func() { os.Setenv(key, old) })
		}
	}
}

// sampleRunResults builds a small finished run for store-backed tests.
func sampleRunResults(id string) experiment.Results {
	returned := 12
	return experiment.Results{
		RunID:           id,
		Seed:            7,
		Cycles:          200,
		FinalCoherences: []float64{0.74, 0.75, 0.76, 0.75, 0.75},
		GlobalCoherence: 0.7486,
		ReturnTimes: []experiment.ReturnTimeRecord{
			{Domain: "domain-0", Cluster: 0, Target: 0.5, ReleasedAt: 60, ReturnCycles: &returned},
		},
		Balance: []experiment.BalanceRecord{
			{Domain: "domain-0", StabilityCycles: 150, ExplorationCycles: 50, Ratio: 3.0, Status: experiment.BalanceOptimal},
		},
		Verdict: experiment.AttractorVerdict{
			IsAttractor:    true,
			EstimatedValue: 0.75,
			StdDev:         0.0063,
			Confidence:     0.9368,
			Bounds:         [2]float64{0.7376, 0.7624},
		},
	}
}

func TestNewVersionCmd(t *testing.T) {
	cmd := newVersionCmd()
	if cmd.Use != "version" {
		t.Errorf("Use = %q, want %q", cmd.Use, "version")
	}
}

func TestNewRunCmd(t *testing.T) {
	cmd := newRunCmd()
	if cmd.Use != "run" {
		t.Errorf("Use = %q, want %q", cmd.Use, "run")
	}

	for _, flag := range []string{"seed", "cycles", "out"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("missing --%s flag", flag)
		}
	}
}

func TestNewValidateCmd(t *testing.T) {
	cmd := newValidateCmd()
	if cmd.Use != "validate" {
		t.Errorf("Use = %q, want %q", cmd.Use, "validate")
	}

	for _, flag := range []string{"runs", "seed"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("missing --%s flag", flag)
		}
	}
}

func TestNewOptimizeCmd(t *testing.T) {
	cmd := newOptimizeCmd()
	if cmd.Use != "optimize" {
		t.Errorf("Use = %q, want %q", cmd.Use, "optimize")
	}

	for _, flag := range []string{"seed", "low", "high", "step", "settle", "samples"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("missing --%s flag", flag)
		}
	}
}

func TestNewHistoryCmd(t *testing.T) {
	cmd := newHistoryCmd()
	if cmd.Use != "history [run-id]" {
		t.Errorf("Use = %q, want %q", cmd.Use, "history [run-id]")
	}

	for _, flag := range []string{"limit", "db"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("missing --%s flag", flag)
		}
	}
}

func TestRunCmdRecordsRunInStore(t *testing.T) {
	isolateEnv(t)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newRunCmd())
	rootCmd.SetArgs([]string{"run", "--seed", "5", "--cycles", "60", "--out", dbPath})
	rootCmd.SetOut(&bytes.Buffer{})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(runs))
	}
	if runs[0].Seed != 5 {
		t.Errorf("Seed = %d, want 5", runs[0].Seed)
	}
	if runs[0].Cycles != 60 {
		t.Errorf("Cycles = %d, want 60", runs[0].Cycles)
	}
	if runs[0].Clusters != 5 {
		t.Errorf("Clusters = %d, want 5", runs[0].Clusters)
	}
	if len(runs[0].FinalCoherences) != 5 {
		t.Errorf("len(FinalCoherences) = %d, want 5", len(runs[0].FinalCoherences))
	}
}

func TestRunCmdRejectsMissingConfigFile(t *testing.T) {
	isolateEnv(t)

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newRunCmd())
	rootCmd.SetArgs([]string{"run", "--config", filepath.Join(t.TempDir(), "nope.yaml")})
	rootCmd.SetOut(&bytes.Buffer{})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "loading config file") {
		t.Errorf("expected 'loading config file' error, got: %v", err)
	}
}

func TestValidateCmdSmallBatch(t *testing.T) {
	isolateEnv(t)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "experiment:\n  total_cycles: 120\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.SetArgs([]string{"validate", "--runs", "2", "--config", cfgPath})
	rootCmd.SetOut(&bytes.Buffer{})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
}

func TestValidateCmdRejectsNonPositiveRuns(t *testing.T) {
	isolateEnv(t)

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.SetArgs([]string{"validate", "--runs", "0"})
	rootCmd.SetOut(&bytes.Buffer{})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for --runs 0")
	}
	if !strings.Contains(err.Error(), "at least 1") {
		t.Errorf("expected 'at least 1' error, got: %v", err)
	}
}

func TestOptimizeCmdRejectsBadSweep(t *testing.T) {
	isolateEnv(t)

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newOptimizeCmd())
	rootCmd.SetArgs([]string{"optimize", "--low", "0.5", "--high", "0.2"})
	rootCmd.SetOut(&bytes.Buffer{})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for inverted sweep bounds")
	}
	if !strings.Contains(err.Error(), "below low") {
		t.Errorf("expected 'below low' error, got: %v", err)
	}
}

func TestHistoryCmdRequiresStore(t *testing.T) {
	isolateEnv(t)

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.SetArgs([]string{"history"})
	rootCmd.SetOut(&bytes.Buffer{})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error when no store is configured")
	}
	if !strings.Contains(err.Error(), "no results store configured") {
		t.Errorf("expected 'no results store configured' error, got: %v", err)
	}
}

func TestHistoryCmdEmptyStore(t *testing.T) {
	isolateEnv(t)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.SetArgs([]string{"history", "--db", dbPath})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("history failed: %v", err)
	}

	if !strings.Contains(out.String(), "No recorded runs") {
		t.Errorf("expected 'No recorded runs', got: %s", out.String())
	}
}

func TestHistoryCmdListsRecordedRuns(t *testing.T) {
	isolateEnv(t)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := st.SaveRun(context.Background(), sampleRunResults("run-abc123"), nil); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	st.Close()

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.SetArgs([]string{"history", "--db", dbPath})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("history failed: %v", err)
	}

	output := out.String()
	if !strings.Contains(output, "run-abc123") {
		t.Errorf("expected output to list run-abc123, got: %s", output)
	}
	if !strings.Contains(output, "0.7486") {
		t.Errorf("expected output to show global coherence, got: %s", output)
	}
}

func TestHistoryCmdShowsRunDetail(t *testing.T) {
	isolateEnv(t)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := st.SaveRun(context.Background(), sampleRunResults("run-abc123"), nil); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	st.Close()

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.SetArgs([]string{"history", "run-abc123", "--db", dbPath})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("history detail failed: %v", err)
	}

	output := out.String()
	if !strings.Contains(output, "run-abc123") {
		t.Errorf("expected output to name the run, got: %s", output)
	}
	if !strings.Contains(output, "Return times") {
		t.Errorf("expected return times section, got: %s", output)
	}
	if !strings.Contains(output, "returned in 12 cycles") {
		t.Errorf("expected return measurement line, got: %s", output)
	}
}

func TestHistoryCmdUnknownRun(t *testing.T) {
	isolateEnv(t)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	st.Close()

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.SetArgs([]string{"history", "run-missing", "--db", dbPath})
	rootCmd.SetOut(&bytes.Buffer{})
	err = rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for unknown run id")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected 'not found' error, got: %v", err)
	}
}

func TestFormatReturnTime(t *testing.T) {
	returned := 9
	withReturn := experiment.ReturnTimeRecord{
		Domain: "domain-2", Cluster: 2, Target: 0.4, ReleasedAt: 80, ReturnCycles: &returned,
	}
	got := formatReturnTime(withReturn)
	if !strings.Contains(got, "returned in 9 cycles") || !strings.Contains(got, "domain-2") {
		t.Errorf("formatReturnTime = %q, want return count and domain", got)
	}

	noReturn := experiment.ReturnTimeRecord{
		Domain: "domain-1", Cluster: 1, Target: 0.3, ReleasedAt: 40, ReturnCycles: nil,
	}
	got = formatReturnTime(noReturn)
	if !strings.Contains(got, "no return within the window") {
		t.Errorf("formatReturnTime = %q, want timeout wording", got)
	}
}
