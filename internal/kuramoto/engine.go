// Package kuramoto implements a deterministic engine for coupled phase
// oscillators arranged into domain clusters. Each cluster derives a coherence
// value from the weighted order parameter of its oscillators and runs an
// Ouroboros mode machine that alternates stability and exploration dwell
// periods. Perturbations clamp a cluster's reported coherence to model an
// externally forced state.
//
// The engine is single-threaded by contract: the caller owns the tick loop
// and calls Tick once per cycle. All randomness comes from a private seeded
// source, so identical configs and seeds replay identical trajectories.
package kuramoto

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/stats"
)

// blendRetain is the weight the coherence blend keeps on the freshly derived
// order parameter; the remainder pulls toward the active mode's target.
const blendRetain = 0.95

// Engine advances a set of oscillator clusters through discrete ticks.
type Engine struct {
	cfg      Config
	clusters []*Cluster
	rng      *rand.Rand
	cycle    int

	// newPhases is the commit buffer for the two-phase tick update.
	newPhases [][]float64

	transitions []ModeTransition
}

// New constructs an engine from cfg. The configuration is validated first;
// an invalid configuration returns an error and no engine.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kuramoto: invalid config: %w", err)
	}
	e := &Engine{}
	e.init(cfg)
	return e, nil
}

// Reset reinitializes the engine in place from cfg: fresh oscillators, a
// fresh random stream, cycle counter back to zero. An invalid cfg returns an
// error and leaves the engine untouched.
func (e *Engine) Reset(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("kuramoto: invalid config: %w", err)
	}
	e.init(cfg)
	return nil
}

func (e *Engine) init(cfg Config) {
	e.cfg = cfg
	e.rng = rand.New(rand.NewSource(cfg.Seed))
	e.cycle = 0
	e.transitions = nil
	e.clusters = make([]*Cluster, cfg.Clusters)
	for i := range e.clusters {
		e.clusters[i] = e.newCluster(i)
	}
	e.newPhases = make([][]float64, cfg.Clusters)
	for i := range e.newPhases {
		e.newPhases[i] = make([]float64, cfg.OscillatorsPerCluster)
	}
}

func (e *Engine) newCluster(id int) *Cluster {
	cl := &Cluster{
		ID:               id,
		DomainTag:        e.domainTag(id),
		Oscillators:      make([]Oscillator, e.cfg.OscillatorsPerCluster),
		CouplingInternal: e.cfg.CouplingInternal,
		CouplingExternal: e.cfg.CouplingExternal,
		NoiseLevel:       e.cfg.NoiseLevel,
		Mode:             ModeStability,
		ModeCycleTarget:  e.cfg.Ouroboros.StabilityCycleTarget,
	}
	// Clusters start at random positions in their Ouroboros cycle so their
	// mode switches do not land on the same cycles across the whole engine.
	cl.ModeCycles = e.rng.Intn(e.cfg.Ouroboros.StabilityCycleTarget + 1)

	stabilityCount := int(math.Round(e.cfg.GroupRatio * float64(e.cfg.OscillatorsPerCluster)))
	for j := range cl.Oscillators {
		o := &cl.Oscillators[j]
		o.Phase = e.rng.Float64() * twoPi
		if j < stabilityCount {
			o.Group = GroupStability
			o.Weight = e.cfg.StabilityWeight
			o.NaturalFreq = e.cfg.BaseFrequency + (e.rng.Float64()*2-1)*e.cfg.StabilityJitter
		} else {
			o.Group = GroupExploration
			o.Weight = e.cfg.ExplorationWeight
			detune := e.cfg.ExplorationDetuneMin +
				e.rng.Float64()*(e.cfg.ExplorationDetuneMax-e.cfg.ExplorationDetuneMin)
			if e.rng.Float64() < 0.5 {
				detune = -detune
			}
			o.NaturalFreq = e.cfg.BaseFrequency + detune
		}
	}
	cl.Coherence = cl.orderParameter()
	return cl
}

func (e *Engine) domainTag(id int) string {
	if id < len(e.cfg.DomainTags) && e.cfg.DomainTags[id] != "" {
		return e.cfg.DomainTags[id]
	}
	return fmt.Sprintf("domain-%d", id)
}

// Tick advances every oscillator by one cycle of duration dt and returns the
// post-tick cluster snapshots. Mean fields are computed from the pre-tick
// phases, and new phases are committed only after all of them are known, so
// the result does not depend on update order.
func (e *Engine) Tick(dt float64) []ClusterSnapshot {
	type fieldSums struct {
		sin, cos float64
		n        int
	}

	// Pass 1: per-cluster and grand mean-field sums over the pre-tick phases.
	sums := make([]fieldSums, len(e.clusters))
	var totalSin, totalCos float64
	totalN := 0
	for i, cl := range e.clusters {
		for j := range cl.Oscillators {
			s, c := math.Sincos(cl.Oscillators[j].Phase)
			sums[i].sin += s
			sums[i].cos += c
		}
		sums[i].n = len(cl.Oscillators)
		totalSin += sums[i].sin
		totalCos += sums[i].cos
		totalN += sums[i].n
	}

	// Pass 2: integrate each oscillator against the snapshot fields.
	for i, cl := range e.clusters {
		n := float64(sums[i].n)
		meanInternal := math.Atan2(sums[i].sin/n, sums[i].cos/n)

		// The external field averages every oscillator outside this cluster.
		extN := totalN - sums[i].n
		var meanExternal float64
		hasExternal := extN > 0
		if hasExternal {
			meanExternal = math.Atan2(
				(totalSin-sums[i].sin)/float64(extN),
				(totalCos-sums[i].cos)/float64(extN),
			)
		}

		for j := range cl.Oscillators {
			o := &cl.Oscillators[j]
			scale := e.cfg.StabilityNoiseScale
			if o.Group == GroupExploration {
				scale = e.cfg.ExplorationNoiseScale
			}
			noise := (e.rng.Float64()*2 - 1) * cl.NoiseLevel * scale

			dTheta := o.NaturalFreq + cl.CouplingInternal*math.Sin(meanInternal-o.Phase) + noise
			if hasExternal {
				dTheta += cl.CouplingExternal * math.Sin(meanExternal-o.Phase)
			}
			e.newPhases[i][j] = wrapPhase(o.Phase + dt*dTheta)
		}
	}

	// Pass 3: commit phases, derive coherence, advance the mode machine.
	for i, cl := range e.clusters {
		for j := range cl.Oscillators {
			cl.Oscillators[j].Phase = e.newPhases[i][j]
		}

		if cl.PerturbationActive {
			cl.Coherence = stats.Clamp01(cl.TargetCoherence)
		} else {
			r := cl.orderParameter()
			target := cl.Mode.target(e.cfg.Ouroboros)
			cl.Coherence = stats.Clamp01(blendRetain*r + (1-blendRetain)*target)
		}

		if tr, ok := cl.advanceMode(e.cfg.Ouroboros, e.cycle); ok {
			e.transitions = append(e.transitions, tr)
		}
		cl.CycleCount++
	}
	e.cycle++

	return e.Snapshot()
}

// Snapshot returns read-only copies of every cluster's observable state.
func (e *Engine) Snapshot() []ClusterSnapshot {
	out := make([]ClusterSnapshot, len(e.clusters))
	for i, cl := range e.clusters {
		out[i] = cl.snapshot()
	}
	return out
}

// ClusterCount returns the number of clusters.
func (e *Engine) ClusterCount() int { return len(e.clusters) }

// Cycle returns the number of completed ticks since construction or reset.
func (e *Engine) Cycle() int { return e.cycle }

// Config returns the configuration the engine was built from.
func (e *Engine) Config() Config { return e.cfg }

// Coherence returns cluster i's current coherence.
func (e *Engine) Coherence(i int) (float64, error) {
	if i < 0 || i >= len(e.clusters) {
		return 0, e.clusterIndexErr(i)
	}
	return e.clusters[i].Coherence, nil
}

// GlobalCoherence returns the mean of the per-cluster coherence values.
func (e *Engine) GlobalCoherence() float64 {
	vals := make([]float64, len(e.clusters))
	for i, cl := range e.clusters {
		vals[i] = cl.Coherence
	}
	return stats.Mean(vals)
}

// Mode returns cluster i's current Ouroboros mode.
func (e *Engine) Mode(i int) (Mode, error) {
	if i < 0 || i >= len(e.clusters) {
		return ModeStability, e.clusterIndexErr(i)
	}
	return e.clusters[i].Mode, nil
}

// Phases returns a copy of cluster i's oscillator phases.
func (e *Engine) Phases(i int) ([]float64, error) {
	if i < 0 || i >= len(e.clusters) {
		return nil, e.clusterIndexErr(i)
	}
	return e.clusters[i].phases(), nil
}

// NoiseLevels returns a copy of the per-cluster noise levels.
func (e *Engine) NoiseLevels() []float64 {
	out := make([]float64, len(e.clusters))
	for i, cl := range e.clusters {
		out[i] = cl.NoiseLevel
	}
	return out
}

// SetNoise sets every cluster's noise level.
func (e *Engine) SetNoise(level float64) error {
	if level < 0 {
		return fmt.Errorf("kuramoto: noise level must be non-negative, got %f", level)
	}
	for _, cl := range e.clusters {
		cl.NoiseLevel = level
	}
	return nil
}

// SetClusterNoise sets cluster i's noise level.
func (e *Engine) SetClusterNoise(i int, level float64) error {
	if i < 0 || i >= len(e.clusters) {
		return e.clusterIndexErr(i)
	}
	if level < 0 {
		return fmt.Errorf("kuramoto: noise level must be non-negative, got %f", level)
	}
	e.clusters[i].NoiseLevel = level
	return nil
}

// DrainTransitions returns the mode transitions recorded since the last
// drain and clears the buffer.
func (e *Engine) DrainTransitions() []ModeTransition {
	out := e.transitions
	e.transitions = nil
	return out
}

func (e *Engine) clusterIndexErr(i int) error {
	return fmt.Errorf("%w: %d (clusters: %d)", ErrClusterIndex, i, len(e.clusters))
}
