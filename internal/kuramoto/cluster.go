package kuramoto

import (
	"math"

	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/stats"
)

// Cluster groups oscillators under one domain tag and carries the derived
// coherence plus the Ouroboros mode state. Clusters are owned by the engine;
// the perturbation controller touches only the clamp fields on its behalf.
type Cluster struct {
	ID        int
	DomainTag string

	Oscillators []Oscillator

	// Coherence is the blended order parameter, always in [0, 1].
	Coherence float64

	// TargetCoherence is the clamp value reported while PerturbationActive.
	TargetCoherence    float64
	PerturbationActive bool

	CouplingInternal float64
	CouplingExternal float64
	NoiseLevel       float64

	// CycleCount is the number of ticks this cluster has been through.
	CycleCount int

	Mode            Mode
	ModeCycles      int
	ModeCycleTarget int

	// Dwell totals per mode, for balance reporting.
	StabilityCycles   int
	ExplorationCycles int
}

// orderParameter returns the weighted magnitude of the cluster's mean phase
// vector: R = sqrt((Σ wᵢ sin θᵢ / N)² + (Σ wᵢ cos θᵢ / N)²). Normalizing by
// the oscillator count rather than the weight sum is what makes the group
// weighting meaningful: a fully locked stability group tops out at its share
// of the population, not at 1.
func (cl *Cluster) orderParameter() float64 {
	n := float64(len(cl.Oscillators))
	if n == 0 {
		return 0
	}
	var sumSin, sumCos float64
	for i := range cl.Oscillators {
		o := &cl.Oscillators[i]
		s, c := math.Sincos(o.Phase)
		sumSin += o.Weight * s
		sumCos += o.Weight * c
	}
	sumSin /= n
	sumCos /= n
	return stats.Clamp01(math.Sqrt(sumSin*sumSin + sumCos*sumCos))
}

// phases returns a copy of the oscillator phases in index order.
func (cl *Cluster) phases() []float64 {
	out := make([]float64, len(cl.Oscillators))
	for i := range cl.Oscillators {
		out[i] = cl.Oscillators[i].Phase
	}
	return out
}
