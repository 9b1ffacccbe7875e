package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/experiment"
)

// SQLiteResultsStore persists experiment results to a SQLite database.
// One run maps to one row in runs plus its return_times, sync_events,
// transitions and balance rows, written in a single transaction.
type SQLiteResultsStore struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// RunSummary is the stored shape of one run, as listed and fetched back.
type RunSummary struct {
	ID              string                      `json:"run_id"`
	Seed            int64                       `json:"seed"`
	Clusters        int                         `json:"clusters"`
	Cycles          int                         `json:"cycles"`
	GlobalCoherence float64                     `json:"global_coherence"`
	FinalCoherences []float64                   `json:"final_coherences"`
	Verdict         experiment.AttractorVerdict `json:"verdict"`
	CreatedAt       string                      `json:"created_at"`
}

// Open opens (or creates) the results database at path and initializes the
// schema.
func Open(path string) (*SQLiteResultsStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store: database path is empty")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteResultsStore{db: db, path: path}, nil
}

// SaveRun writes a complete run in one transaction. configJSON may be nil
// when the caller has no configuration to attach.
func (s *SQLiteResultsStore) SaveRun(ctx context.Context, res experiment.Results, configJSON []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	finals, err := json.Marshal(res.FinalCoherences)
	if err != nil {
		return fmt.Errorf("failed to encode final coherences: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Format(time.RFC3339)
	v := res.Verdict
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, seed, clusters, cycles, global_coherence,
			is_attractor, estimated_value, stddev, confidence, bound_low, bound_high,
			final_coherences, config, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Seed, len(res.FinalCoherences), res.Cycles, res.GlobalCoherence,
		v.IsAttractor, v.EstimatedValue, v.StdDev, v.Confidence, v.Bounds[0], v.Bounds[1],
		string(finals), nullBytes(configJSON), now); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, rec := range res.ReturnTimes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO return_times (run_id, cluster, domain, perturbation_target, released_at, return_cycles)
			VALUES (?, ?, ?, ?, ?, ?)`,
			res.RunID, rec.Cluster, rec.Domain, rec.Target, rec.ReleasedAt, rec.ReturnCycles); err != nil {
			return fmt.Errorf("failed to insert return time: %w", err)
		}
	}

	for _, ev := range res.SyncEvents {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sync_events (run_id, cycle, global_coherence)
			VALUES (?, ?, ?)`,
			res.RunID, ev.Cycle, ev.GlobalCoherence); err != nil {
			return fmt.Errorf("failed to insert sync event: %w", err)
		}
	}

	for _, tr := range res.Transitions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transitions (run_id, cluster, domain, cycle, from_mode, to_mode, coherence)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			res.RunID, tr.Cluster, tr.Domain, tr.Cycle, tr.From.String(), tr.To.String(), tr.Coherence); err != nil {
			return fmt.Errorf("failed to insert transition: %w", err)
		}
	}

	for _, b := range res.Balance {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO balance (run_id, domain, stability_cycles, exploration_cycles, ratio, status)
			VALUES (?, ?, ?, ?, ?, ?)`,
			res.RunID, b.Domain, b.StabilityCycles, b.ExplorationCycles, b.Ratio, b.Status); err != nil {
			return fmt.Errorf("failed to insert balance record: %w", err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a stored run by id. Returns nil if not found.
func (s *SQLiteResultsStore) GetRun(ctx context.Context, id string) (*RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, seed, clusters, cycles, global_coherence,
		       is_attractor, estimated_value, stddev, confidence, bound_low, bound_high,
		       final_coherences, created_at
		FROM runs WHERE id = ?`, id)

	summary, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return summary, nil
}

// ListRuns returns stored runs, newest first. A limit below 1 defaults
// to 20.
func (s *SQLiteResultsStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seed, clusters, cycles, global_coherence,
		       is_attractor, estimated_value, stddev, confidence, bound_low, bound_high,
		       final_coherences, created_at
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		summary, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		summaries = append(summaries, *summary)
	}
	return summaries, rows.Err()
}

// ReturnTimes retrieves the return-time records stored for a run.
func (s *SQLiteResultsStore) ReturnTimes(ctx context.Context, runID string) ([]experiment.ReturnTimeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT cluster, domain, perturbation_target, released_at, return_cycles
		FROM return_times WHERE run_id = ? ORDER BY released_at, cluster`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query return times: %w", err)
	}
	defer rows.Close()

	var recs []experiment.ReturnTimeRecord
	for rows.Next() {
		var rec experiment.ReturnTimeRecord
		var cycles sql.NullInt64
		if err := rows.Scan(&rec.Cluster, &rec.Domain, &rec.Target, &rec.ReleasedAt, &cycles); err != nil {
			return nil, fmt.Errorf("failed to scan return time: %w", err)
		}
		if cycles.Valid {
			n := int(cycles.Int64)
			rec.ReturnCycles = &n
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteResultsStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunSummary, error) {
	var (
		summary RunSummary
		finals  string
	)
	if err := row.Scan(
		&summary.ID, &summary.Seed, &summary.Clusters, &summary.Cycles, &summary.GlobalCoherence,
		&summary.Verdict.IsAttractor, &summary.Verdict.EstimatedValue, &summary.Verdict.StdDev,
		&summary.Verdict.Confidence, &summary.Verdict.Bounds[0], &summary.Verdict.Bounds[1],
		&finals, &summary.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(finals), &summary.FinalCoherences); err != nil {
		return nil, fmt.Errorf("failed to decode final coherences: %w", err)
	}
	return &summary, nil
}

func nullBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
