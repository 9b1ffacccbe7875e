// Package optimize searches engine noise levels for the stochastic-resonance
// optimum: the level at which global coherence holds steadiest. Each
// candidate level is applied to every cluster, burned in, sampled one tick
// apart, and scored by the inverse spread of the samples.
package optimize

import (
	"context"
	"fmt"

	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/kuramoto"
	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/stats"
)

// gridTolerance keeps float accumulation from dropping the high endpoint of
// a sweep grid.
const gridTolerance = 1e-9

// Sweep bounds a noise search.
type Sweep struct {
	// Low and High bound the candidate range, inclusive. Defaults: 0.01, 0.30.
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`

	// Step is the grid spacing. Default: 0.01.
	Step float64 `json:"step" yaml:"step"`

	// SettleCycles are burn-in ticks after each level change, discarded
	// before sampling. Default: 50.
	SettleCycles int `json:"settle_cycles" yaml:"settle_cycles"`

	// SampleCount is how many global coherence samples, one tick apart,
	// score a level. Default: 30.
	SampleCount int `json:"sample_count" yaml:"sample_count"`

	// CycleDuration is the dt handed to every tick. Default: 0.1.
	CycleDuration float64 `json:"cycle_duration" yaml:"cycle_duration"`
}

// DefaultSweep returns the standard search grid.
func DefaultSweep() Sweep {
	return Sweep{
		Low:           0.01,
		High:          0.30,
		Step:          0.01,
		SettleCycles:  50,
		SampleCount:   30,
		CycleDuration: 0.1,
	}
}

// Validate checks the sweep bounds.
func (s Sweep) Validate() error {
	if s.Low < 0 {
		return fmt.Errorf("low must be non-negative, got %f", s.Low)
	}
	if s.High < s.Low {
		return fmt.Errorf("high %f is below low %f", s.High, s.Low)
	}
	if s.Step <= 0 {
		return fmt.Errorf("step must be positive, got %f", s.Step)
	}
	if s.SettleCycles < 0 {
		return fmt.Errorf("settle_cycles must be non-negative, got %d", s.SettleCycles)
	}
	if s.SampleCount < 2 {
		return fmt.Errorf("sample_count must be at least 2, got %d", s.SampleCount)
	}
	if s.CycleDuration <= 0 {
		return fmt.Errorf("cycle_duration must be positive, got %f", s.CycleDuration)
	}
	return nil
}

// LevelScore records one candidate's stability score.
type LevelScore struct {
	NoiseLevel     float64 `json:"noise_level"`
	StabilityScore float64 `json:"stability_score"`
}

// GroupLevels are the per-group noise levels derived from a base level by
// the engine's group noise scales.
type GroupLevels struct {
	Stability   float64 `json:"stability"`
	Exploration float64 `json:"exploration"`
}

// Result is the outcome of a noise search.
type Result struct {
	// NoiseLevel is the best-scoring candidate; ties keep the lower level.
	NoiseLevel float64 `json:"noise_level"`

	// StabilityScore is 1/(stddev of the sampled global coherence + ε) at
	// the best level.
	StabilityScore float64 `json:"stability_score"`

	// Groups is NoiseLevel scaled per oscillator group.
	Groups GroupLevels `json:"group_levels"`

	// Levels holds every candidate's score in sweep order.
	Levels []LevelScore `json:"levels"`
}

// FindOptimalNoise sweeps the grid and returns the steadiest noise level.
// The engine's per-cluster noise levels are saved first and restored on
// every exit path: the search reports an optimum, it never leaves one
// applied. Cancelling ctx aborts the sweep with the context's error and the
// same restoration.
func FindOptimalNoise(ctx context.Context, engine *kuramoto.Engine, sweep Sweep) (Result, error) {
	if err := sweep.Validate(); err != nil {
		return Result{}, fmt.Errorf("optimize: invalid sweep: %w", err)
	}

	saved := engine.NoiseLevels()
	defer func() {
		for i, lvl := range saved {
			// Saved levels came from the engine, so they cannot fail
			// validation.
			_ = engine.SetClusterNoise(i, lvl)
		}
	}()

	var result Result
	best := -1.0
	samples := make([]float64, 0, sweep.SampleCount)

	for k := 0; ; k++ {
		level := sweep.Low + float64(k)*sweep.Step
		if level > sweep.High+gridTolerance {
			break
		}

		if err := engine.SetNoise(level); err != nil {
			return Result{}, fmt.Errorf("optimize: set noise %f: %w", level, err)
		}
		for i := 0; i < sweep.SettleCycles; i++ {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			engine.Tick(sweep.CycleDuration)
		}
		samples = samples[:0]
		for i := 0; i < sweep.SampleCount; i++ {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			engine.Tick(sweep.CycleDuration)
			samples = append(samples, engine.GlobalCoherence())
		}

		score := 1 / (stats.StdDev(samples) + stats.Epsilon)
		result.Levels = append(result.Levels, LevelScore{NoiseLevel: level, StabilityScore: score})
		if score > best {
			best = score
			result.NoiseLevel = level
			result.StabilityScore = score
		}
	}

	cfg := engine.Config()
	result.Groups = GroupLevels{
		Stability:   result.NoiseLevel * cfg.StabilityNoiseScale,
		Exploration: result.NoiseLevel * cfg.ExplorationNoiseScale,
	}
	return result, nil
}
