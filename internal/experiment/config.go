package experiment

import (
	"fmt"

	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/kuramoto"
)

// Config fixes one experiment run. It is immutable for the duration of the
// run; engine construction parameters live in kuramoto.Config.
type Config struct {
	// CycleDuration is the dt handed to every tick. Default: 0.1.
	CycleDuration float64 `json:"cycle_duration" yaml:"cycle_duration"`

	// TotalCycles is the run length in ticks. Default: 500.
	TotalCycles int `json:"total_cycles" yaml:"total_cycles"`

	// SyncEventThreshold is the widest |cluster - global| coherence distance
	// at which all clusters still count as synchronized. Default: 0.05.
	SyncEventThreshold float64 `json:"sync_event_threshold" yaml:"sync_event_threshold"`

	// Return bounds the return-time measurement opened after each
	// perturbation release.
	Return kuramoto.ReturnSpec `json:"return" yaml:"return"`

	// Perturbations is the scheduled forcing sequence.
	Perturbations []PerturbationSpec `json:"perturbations,omitempty" yaml:"perturbations,omitempty"`
}

// PerturbationSpec schedules one forcing window.
type PerturbationSpec struct {
	// StartCycle is the cycle at which the clamp is applied, counted from 0.
	StartCycle int `json:"start_cycle" yaml:"start_cycle"`

	// TargetCoherence is the clamp value, in [0, 1].
	TargetCoherence float64 `json:"target_coherence" yaml:"target_coherence"`

	// DurationCycles is how long the clamp holds.
	DurationCycles int `json:"duration_cycles" yaml:"duration_cycles"`

	// Clusters are the affected cluster indices.
	Clusters []int `json:"clusters" yaml:"clusters"`
}

// DefaultConfig returns a 500-cycle run with no scheduled perturbations.
func DefaultConfig() Config {
	return Config{
		CycleDuration:      0.1,
		TotalCycles:        500,
		SyncEventThreshold: 0.05,
		Return:             kuramoto.DefaultReturnSpec(),
	}
}

// Validate checks the run parameters, returning the first problem found.
// Cluster indices are validated against the engine when a perturbation is
// applied, not here.
func (c Config) Validate() error {
	if c.CycleDuration <= 0 {
		return fmt.Errorf("cycle_duration must be positive, got %f", c.CycleDuration)
	}
	if c.TotalCycles < 1 {
		return fmt.Errorf("total_cycles must be at least 1, got %d", c.TotalCycles)
	}
	if c.SyncEventThreshold <= 0 {
		return fmt.Errorf("sync_event_threshold must be positive, got %f", c.SyncEventThreshold)
	}
	if err := c.Return.Validate(); err != nil {
		return fmt.Errorf("return: %w", err)
	}
	for i, p := range c.Perturbations {
		if p.StartCycle < 0 {
			return fmt.Errorf("perturbation %d: start_cycle must be non-negative, got %d", i, p.StartCycle)
		}
		if p.StartCycle >= c.TotalCycles {
			return fmt.Errorf("perturbation %d: start_cycle %d is past the run of %d cycles", i, p.StartCycle, c.TotalCycles)
		}
		if p.TargetCoherence < 0 || p.TargetCoherence > 1 {
			return fmt.Errorf("perturbation %d: target_coherence must be between 0 and 1, got %f", i, p.TargetCoherence)
		}
		if p.DurationCycles < 1 {
			return fmt.Errorf("perturbation %d: duration_cycles must be at least 1, got %d", i, p.DurationCycles)
		}
		if len(p.Clusters) == 0 {
			return fmt.Errorf("perturbation %d: names no clusters", i)
		}
	}
	return nil
}
