package kuramoto

// ClusterSnapshot is a read-only view of one cluster after a tick.
type ClusterSnapshot struct {
	Cluster            int       `json:"cluster"`
	Domain             string    `json:"domain"`
	Coherence          float64   `json:"coherence"`
	Mode               Mode      `json:"mode"`
	ModeCycles         int       `json:"mode_cycles"`
	CycleCount         int       `json:"cycle_count"`
	NoiseLevel         float64   `json:"noise_level"`
	PerturbationActive bool      `json:"perturbation_active,omitempty"`
	TargetCoherence    float64   `json:"target_coherence,omitempty"`
	StabilityCycles    int       `json:"stability_cycles"`
	ExplorationCycles  int       `json:"exploration_cycles"`
	Phases             []float64 `json:"phases,omitempty"`
}

func (cl *Cluster) snapshot() ClusterSnapshot {
	return ClusterSnapshot{
		Cluster:            cl.ID,
		Domain:             cl.DomainTag,
		Coherence:          cl.Coherence,
		Mode:               cl.Mode,
		ModeCycles:         cl.ModeCycles,
		CycleCount:         cl.CycleCount,
		NoiseLevel:         cl.NoiseLevel,
		PerturbationActive: cl.PerturbationActive,
		TargetCoherence:    cl.TargetCoherence,
		StabilityCycles:    cl.StabilityCycles,
		ExplorationCycles:  cl.ExplorationCycles,
		Phases:             cl.phases(),
	}
}
