package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/experiment"
	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/kuramoto"
)

func newTestStore(t *testing.T) *SQLiteResultsStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResults(id string) experiment.Results {
	returned := 42
	return experiment.Results{
		RunID:           id,
		Seed:            7,
		Cycles:          500,
		FinalCoherences: []float64{0.74, 0.75, 0.76, 0.75, 0.75},
		GlobalCoherence: 0.75,
		ReturnTimes: []experiment.ReturnTimeRecord{
			{Domain: "domain-0", Cluster: 0, Target: 0.5, ReleasedAt: 60, ReturnCycles: &returned},
			{Domain: "domain-1", Cluster: 1, Target: 0.3, ReleasedAt: 120, ReturnCycles: nil},
		},
		SyncEvents: []experiment.SyncEvent{
			{Cycle: 130, GlobalCoherence: 0.74, Domains: []string{"domain-0", "domain-1"}},
		},
		Transitions: []kuramoto.ModeTransition{
			{Cluster: 0, Domain: "domain-0", Cycle: 12, From: kuramoto.ModeStability, To: kuramoto.ModeExploration, Coherence: 0.61},
		},
		Balance: []experiment.BalanceRecord{
			{Domain: "domain-0", StabilityCycles: 360, ExplorationCycles: 140, Ratio: 2.57, Status: experiment.BalanceAdjusting},
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

func TestSQLiteResultsStore_SaveAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	res := sampleResults("run-1")

	if err := s.SaveRun(ctx, res, []byte(`{"seed":7}`)); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("GetRun returned nil for a stored run")
	}

	if got.ID != "run-1" || got.Seed != 7 || got.Cycles != 500 {
		t.Errorf("unexpected summary identity: %+v", got)
	}
	if got.Clusters != 5 {
		t.Errorf("clusters = %d, want 5", got.Clusters)
	}
	if got.GlobalCoherence != 0.75 {
		t.Errorf("global coherence = %v, want 0.75", got.GlobalCoherence)
	}
	if len(got.FinalCoherences) != 5 || got.FinalCoherences[2] != 0.76 {
		t.Errorf("final coherences = %v, want the stored five values", got.FinalCoherences)
	}
	v := got.Verdict
	if !v.IsAttractor || v.EstimatedValue != 0.75 || v.StdDev != 0.0063 {
		t.Errorf("verdict did not round-trip: %+v", v)
	}
	if v.Bounds[0] != 0.7376 || v.Bounds[1] != 0.7624 {
		t.Errorf("bounds did not round-trip: %v", v.Bounds)
	}
	if got.CreatedAt == "" {
		t.Error("expected a created_at timestamp")
	}
}

func TestSQLiteResultsStore_GetRunNotFound(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetRun(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for a missing run, got %+v", got)
	}
}

func TestSQLiteResultsStore_ReturnTimesRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, sampleResults("run-1"), nil); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	recs, err := s.ReturnTimes(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReturnTimes: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("return time records = %d, want 2", len(recs))
	}

	if recs[0].Cluster != 0 || recs[0].Domain != "domain-0" || recs[0].ReleasedAt != 60 {
		t.Errorf("unexpected first record: %+v", recs[0])
	}
	if recs[0].ReturnCycles == nil || *recs[0].ReturnCycles != 42 {
		t.Errorf("first record return cycles = %v, want 42", recs[0].ReturnCycles)
	}
	if recs[1].ReturnCycles != nil {
		t.Errorf("timed-out record should keep NULL return cycles, got %d", *recs[1].ReturnCycles)
	}
	if recs[1].Target != 0.3 {
		t.Errorf("second record target = %v, want 0.3", recs[1].Target)
	}
}

func TestSQLiteResultsStore_SavesEventRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, sampleResults("run-1"), nil); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	counts := map[string]int{}
	for _, table := range []string{"sync_events", "transitions", "balance"} {
		var n int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM "+table+" WHERE run_id = ?", "run-1").Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		counts[table] = n
	}
	if counts["sync_events"] != 1 || counts["transitions"] != 1 || counts["balance"] != 1 {
		t.Errorf("row counts = %v, want 1 in each table", counts)
	}

	var fromMode, toMode string
	if err := s.db.QueryRowContext(ctx,
		`SELECT from_mode, to_mode FROM transitions WHERE run_id = ?`, "run-1").Scan(&fromMode, &toMode); err != nil {
		t.Fatalf("read transition: %v", err)
	}
	if fromMode != "stability" || toMode != "exploration" {
		t.Errorf("transition modes = %s -> %s, want stability -> exploration", fromMode, toMode)
	}
}

func TestSQLiteResultsStore_ListRunsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"run-1", "run-2", "run-3"} {
		if err := s.SaveRun(ctx, sampleResults(id), nil); err != nil {
			t.Fatalf("SaveRun %s: %v", id, err)
		}
	}

	summaries, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("listed %d runs, want 2", len(summaries))
	}
	if summaries[0].ID != "run-3" || summaries[1].ID != "run-2" {
		t.Errorf("order = [%s %s], want newest first [run-3 run-2]", summaries[0].ID, summaries[1].ID)
	}
}

func TestSQLiteResultsStore_DuplicateRunID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, sampleResults("run-1"), nil); err != nil {
		t.Fatalf("first SaveRun: %v", err)
	}
	if err := s.SaveRun(ctx, sampleResults("run-1"), nil); err == nil {
		t.Error("expected error when saving a duplicate run id")
	}
}

func TestSQLiteResultsStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SaveRun(ctx, sampleResults("run-1"), nil); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun after reopen: %v", err)
	}
	if got == nil || got.ID != "run-1" {
		t.Errorf("run did not survive reopen: %+v", got)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("expected error for empty database path")
	}
}

func TestOpen_CreatesParentDir(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "nested", "dir", "runs.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open with nested path: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file should exist: %v", err)
	}
}

func TestSQLiteResultsStore_ConnectionPoolSettings(t *testing.T) {
	s := newTestStore(t)

	stats := s.db.Stats()
	if stats.MaxOpenConnections != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", stats.MaxOpenConnections)
	}
}
