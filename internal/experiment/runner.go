package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/kuramoto"
	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/logging"
	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/stats"
)

// Runner drives an engine through configured runs: scheduled perturbations,
// return-time measurement, synchronization events, balance bookkeeping and
// the closing attractor verdict.
type Runner struct {
	engine     *kuramoto.Engine
	controller *kuramoto.PerturbationController
	logger     *slog.Logger
	trace      *logging.CoherenceLogger
}

// NewRunner creates a runner over engine. logger may be nil to discard
// operational logs; trace may be nil to skip the coherence trace.
func NewRunner(engine *kuramoto.Engine, logger *slog.Logger, trace *logging.CoherenceLogger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		engine:     engine,
		controller: kuramoto.NewPerturbationController(engine),
		logger:     logger,
		trace:      trace,
	}
}

// openTracker is one in-flight return-time measurement, fed inline by the
// run loop rather than ticking the engine on its own.
type openTracker struct {
	cluster  int
	domain   string
	target   float64
	released int
	tracker  *kuramoto.ReturnTracker
}

// Run drives the engine for cfg.TotalCycles and returns the collected
// results. The context is checked every cycle; cancellation stops the loop
// and returns the partial results alongside the context's error. A
// perturbation that fails to apply aborts the run the same way.
func (r *Runner) Run(ctx context.Context, cfg Config) (Results, error) {
	if err := cfg.Validate(); err != nil {
		return Results{}, fmt.Errorf("experiment: invalid config: %w", err)
	}

	schedule := make([]PerturbationSpec, len(cfg.Perturbations))
	copy(schedule, cfg.Perturbations)
	sort.SliceStable(schedule, func(i, j int) bool {
		return schedule[i].StartCycle < schedule[j].StartCycle
	})

	results := Results{
		RunID: uuid.NewString(),
		Seed:  r.engine.Config().Seed,
	}
	domains := r.domainTags()

	r.logger.Info("experiment started",
		"run_id", results.RunID,
		"seed", results.Seed,
		"total_cycles", cfg.TotalCycles,
		"clusters", r.engine.ClusterCount(),
		"perturbations", len(schedule))

	// Transitions from before this run belong to whoever ticked the engine.
	r.engine.DrainTransitions()

	var (
		open      []*openTracker
		targets   = make(map[int]float64)
		next      = 0
		inSync    = false
		completed = 0
		runErr    error
	)

loop:
	for cycle := 0; cycle < cfg.TotalCycles; cycle++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		// Scheduled releases fire before this cycle's applies, so a window
		// ending here frees its clusters for a new one.
		for _, i := range r.controller.Advance() {
			open = append(open, &openTracker{
				cluster:  i,
				domain:   domains[i],
				target:   targets[i],
				released: cycle,
				tracker:  kuramoto.NewReturnTracker(cfg.Return),
			})
			delete(targets, i)
			r.logger.Debug("perturbation released", "run_id", results.RunID, "cycle", cycle, "cluster", i)
		}

		for next < len(schedule) && schedule[next].StartCycle == cycle {
			spec := schedule[next]
			if err := r.controller.Apply(spec.TargetCoherence, spec.DurationCycles, spec.Clusters); err != nil {
				runErr = fmt.Errorf("experiment: cycle %d: apply perturbation: %w", cycle, err)
				break loop
			}
			for _, i := range spec.Clusters {
				targets[i] = spec.TargetCoherence
			}
			r.logger.Debug("perturbation applied",
				"run_id", results.RunID,
				"cycle", cycle,
				"target", spec.TargetCoherence,
				"duration", spec.DurationCycles,
				"clusters", spec.Clusters)
			next++
		}

		snaps := r.engine.Tick(cfg.CycleDuration)
		global := r.engine.GlobalCoherence()
		completed++

		open = r.observeReturns(&results, open, snaps)

		for _, tr := range r.engine.DrainTransitions() {
			results.Transitions = append(results.Transitions, tr)
			r.traceTransition(results.RunID, tr)
		}

		sync := true
		for _, s := range snaps {
			r.traceCluster(results.RunID, cycle, s)
			if math.Abs(s.Coherence-global) >= cfg.SyncEventThreshold {
				sync = false
			}
		}
		if sync && !inSync {
			results.SyncEvents = append(results.SyncEvents, SyncEvent{
				Cycle:           cycle,
				GlobalCoherence: global,
				Domains:         domains,
			})
			r.logger.Debug("synchronization event", "run_id", results.RunID, "cycle", cycle, "coherence", global)
		}
		inSync = sync
	}

	r.finalize(&results, open, completed)

	if runErr != nil {
		r.logger.Warn("experiment aborted", "run_id", results.RunID, "cycles", completed, "error", runErr)
		return results, runErr
	}
	r.logger.Info("experiment finished",
		"run_id", results.RunID,
		"cycles", completed,
		"global_coherence", results.GlobalCoherence,
		"is_attractor", results.Verdict.IsAttractor,
		"sync_events", len(results.SyncEvents))
	return results, nil
}

// observeReturns feeds this cycle's coherence into every open measurement
// and records the ones that concluded. Returns the still-open trackers.
func (r *Runner) observeReturns(results *Results, open []*openTracker, snaps []kuramoto.ClusterSnapshot) []*openTracker {
	remaining := open[:0]
	for _, ot := range open {
		if !ot.tracker.Observe(snaps[ot.cluster].Coherence) {
			remaining = append(remaining, ot)
			continue
		}
		rec := ReturnTimeRecord{
			Domain:     ot.domain,
			Cluster:    ot.cluster,
			Target:     ot.target,
			ReleasedAt: ot.released,
		}
		if cycles, ok := ot.tracker.Result(); ok {
			n := cycles
			rec.ReturnCycles = &n
			r.logger.Debug("return time measured", "cluster", ot.cluster, "cycles", cycles)
		} else {
			r.logger.Debug("return time window expired", "cluster", ot.cluster)
		}
		results.ReturnTimes = append(results.ReturnTimes, rec)
	}
	return remaining
}

// finalize closes the books on a run: open measurements become timeouts,
// and the final snapshots yield the balance table and attractor verdict.
func (r *Runner) finalize(results *Results, open []*openTracker, completed int) {
	for _, ot := range open {
		results.ReturnTimes = append(results.ReturnTimes, ReturnTimeRecord{
			Domain:     ot.domain,
			Cluster:    ot.cluster,
			Target:     ot.target,
			ReleasedAt: ot.released,
		})
	}

	snaps := r.engine.Snapshot()
	results.Cycles = completed
	results.FinalCoherences = make([]float64, len(snaps))
	for i, s := range snaps {
		results.FinalCoherences[i] = s.Coherence
	}
	results.GlobalCoherence = r.engine.GlobalCoherence()
	results.Balance = balanceRecords(snaps)
	results.Verdict = verdict(results.FinalCoherences, r.engine.Config().Ouroboros.StabilityTarget)
}

func (r *Runner) domainTags() []string {
	snaps := r.engine.Snapshot()
	tags := make([]string, len(snaps))
	for i, s := range snaps {
		tags[i] = s.Domain
	}
	return tags
}

func (r *Runner) traceCluster(runID string, cycle int, s kuramoto.ClusterSnapshot) {
	r.trace.Coherence(logging.CoherenceRecord{
		RunID:       runID,
		Cycle:       cycle,
		Domain:      s.Domain,
		Coherence:   s.Coherence,
		Mode:        s.Mode.String(),
		Stability:   float64(s.StabilityCycles),
		Exploration: float64(s.ExplorationCycles),
		Ratio:       float64(s.StabilityCycles) / (float64(s.ExplorationCycles) + stats.Epsilon),
		Source:      logging.SourceEngine,
	})
}

func (r *Runner) traceTransition(runID string, tr kuramoto.ModeTransition) {
	r.trace.Log(logging.CoherenceRecord{
		RunID:     runID,
		Cycle:     tr.Cycle,
		Domain:    tr.Domain,
		Coherence: tr.Coherence,
		Mode:      tr.To.String(),
		Source:    logging.SourceEngine,
		Details:   fmt.Sprintf("mode %s -> %s", tr.From, tr.To),
	})
}
