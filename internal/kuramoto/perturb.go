package kuramoto

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// PerturbationController applies and releases coherence clamps on behalf of
// an engine and measures post-release return times. Scheduled releases are
// tracked against the engine's cycle counter, never a wall clock; drivers
// call Advance once per cycle before ticking.
type PerturbationController struct {
	engine   *Engine
	releases map[int]int // cluster index -> engine cycle at which to release
}

// NewPerturbationController returns a controller bound to e.
func NewPerturbationController(e *Engine) *PerturbationController {
	return &PerturbationController{engine: e, releases: make(map[int]int)}
}

// Apply clamps the named clusters' reported coherence to target for
// durationCycles. Everything is validated before any cluster is touched:
// indices in range, duration at least one cycle, target in [0, 1], and no
// named cluster already perturbed. An invalid call changes nothing.
func (p *PerturbationController) Apply(target float64, durationCycles int, clusters []int) error {
	if len(clusters) == 0 {
		return fmt.Errorf("kuramoto: perturbation names no clusters")
	}
	if durationCycles < 1 {
		return fmt.Errorf("kuramoto: perturbation duration must be at least 1 cycle, got %d", durationCycles)
	}
	if target < 0 || target > 1 {
		return fmt.Errorf("kuramoto: perturbation target must be between 0 and 1, got %f", target)
	}
	for _, i := range clusters {
		if i < 0 || i >= len(p.engine.clusters) {
			return p.engine.clusterIndexErr(i)
		}
		if p.engine.clusters[i].PerturbationActive {
			return fmt.Errorf("%w: cluster %d", ErrPerturbationActive, i)
		}
	}

	releaseAt := p.engine.cycle + durationCycles
	for _, i := range clusters {
		cl := p.engine.clusters[i]
		cl.PerturbationActive = true
		cl.TargetCoherence = target
		p.releases[i] = releaseAt
	}
	return nil
}

// Release immediately releases the named clusters. Every index must be in
// range and currently perturbed; validation happens before any mutation.
func (p *PerturbationController) Release(clusters []int) error {
	for _, i := range clusters {
		if i < 0 || i >= len(p.engine.clusters) {
			return p.engine.clusterIndexErr(i)
		}
		if !p.engine.clusters[i].PerturbationActive {
			return fmt.Errorf("%w: cluster %d", ErrNotPerturbed, i)
		}
	}
	for _, i := range clusters {
		p.release(i)
	}
	return nil
}

func (p *PerturbationController) release(i int) {
	p.engine.clusters[i].PerturbationActive = false
	delete(p.releases, i)
}

// Advance releases every perturbation whose scheduled cycle has arrived.
// Call once per cycle before ticking. Returns the released indices in
// ascending order.
func (p *PerturbationController) Advance() []int {
	var released []int
	for i, at := range p.releases {
		if p.engine.cycle >= at {
			released = append(released, i)
		}
	}
	for _, i := range released {
		p.release(i)
	}
	sort.Ints(released)
	return released
}

// Active reports whether cluster i currently has a perturbation applied.
// Out-of-range indices report false.
func (p *PerturbationController) Active(i int) bool {
	if i < 0 || i >= len(p.engine.clusters) {
		return false
	}
	return p.engine.clusters[i].PerturbationActive
}

// PendingReleases returns the number of scheduled releases outstanding.
func (p *PerturbationController) PendingReleases() int {
	return len(p.releases)
}

// ReturnSpec parameterizes a return-time measurement.
type ReturnSpec struct {
	// Baseline is the coherence the cluster is expected to recover to.
	// Default: 0.75.
	Baseline float64 `json:"baseline" yaml:"baseline"`

	// Band is the half-width of the acceptance window around Baseline.
	// Default: 0.01.
	Band float64 `json:"band" yaml:"band"`

	// MaxCycles bounds the measurement; exceeding it means "did not
	// return", which is an outcome rather than an error. Default: 200.
	MaxCycles int `json:"max_cycles" yaml:"max_cycles"`

	// DwellCycles is how many consecutive in-band cycles confirm the
	// return. The default of 3 matches the stability dwell of the Ouroboros
	// cycle, whose exploration ticks pull the blended coherence out of a
	// narrow band once per cadence. Default: 3.
	DwellCycles int `json:"dwell_cycles" yaml:"dwell_cycles"`
}

// DefaultReturnSpec returns the standard measurement window around the 0.75
// attractor.
func DefaultReturnSpec() ReturnSpec {
	return ReturnSpec{Baseline: 0.75, Band: 0.01, MaxCycles: 200, DwellCycles: 3}
}

// Validate checks the measurement parameters.
func (s ReturnSpec) Validate() error {
	if s.Baseline < 0 || s.Baseline > 1 {
		return fmt.Errorf("baseline must be between 0 and 1, got %f", s.Baseline)
	}
	if s.Band <= 0 {
		return fmt.Errorf("band must be positive, got %f", s.Band)
	}
	if s.MaxCycles < 1 {
		return fmt.Errorf("max_cycles must be at least 1, got %d", s.MaxCycles)
	}
	if s.DwellCycles < 1 {
		return fmt.Errorf("dwell_cycles must be at least 1, got %d", s.DwellCycles)
	}
	return nil
}

// ReturnTracker counts cycles until a coherence series enters the baseline
// band and stays inside for the dwell window. It is fed one observation per
// cycle, so a driver can interleave it with its own tick loop and resume it
// at any point; no tracker state spans a tick boundary implicitly.
type ReturnTracker struct {
	spec     ReturnSpec
	observed int
	inBand   int
	entered  int
	done     bool
	ok       bool
	result   int
}

// NewReturnTracker returns a tracker for one measurement.
func NewReturnTracker(spec ReturnSpec) *ReturnTracker {
	return &ReturnTracker{spec: spec}
}

// Observe feeds the next cycle's coherence and reports whether the
// measurement has concluded. Further observations after conclusion are
// ignored. The reported return time is the cycle on which the confirmed
// in-band streak began.
func (rt *ReturnTracker) Observe(coherence float64) bool {
	if rt.done {
		return true
	}
	rt.observed++
	if math.Abs(coherence-rt.spec.Baseline) <= rt.spec.Band {
		if rt.inBand == 0 {
			rt.entered = rt.observed
		}
		rt.inBand++
		if rt.inBand >= rt.spec.DwellCycles {
			rt.done = true
			rt.ok = true
			rt.result = rt.entered
			return true
		}
	} else {
		rt.inBand = 0
	}
	if rt.observed >= rt.spec.MaxCycles {
		rt.done = true
	}
	return rt.done
}

// Result returns the measured return time once Observe has reported
// completion. ok is false when the measurement timed out.
func (rt *ReturnTracker) Result() (cycles int, ok bool) {
	return rt.result, rt.ok
}

// MeasureReturnTime ticks the engine until cluster i's coherence has
// returned to spec.Baseline (per ReturnTracker) or spec.MaxCycles elapse.
// Timing out is a normal outcome reported as ok=false; cancelling ctx aborts
// with its error. Scheduled releases keep firing while measuring, so the
// call composes with an earlier Apply.
func (p *PerturbationController) MeasureReturnTime(ctx context.Context, cluster int, dt float64, spec ReturnSpec) (cycles int, ok bool, err error) {
	if cluster < 0 || cluster >= len(p.engine.clusters) {
		return 0, false, p.engine.clusterIndexErr(cluster)
	}
	if dt <= 0 {
		return 0, false, fmt.Errorf("kuramoto: cycle duration must be positive, got %f", dt)
	}
	if err := spec.Validate(); err != nil {
		return 0, false, fmt.Errorf("kuramoto: invalid return spec: %w", err)
	}

	tracker := NewReturnTracker(spec)
	for {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
		p.Advance()
		p.engine.Tick(dt)
		if tracker.Observe(p.engine.clusters[cluster].Coherence) {
			cycles, ok = tracker.Result()
			return cycles, ok, nil
		}
	}
}
