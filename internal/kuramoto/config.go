package kuramoto

import "fmt"

// Config holds the construction parameters for a synchronization engine.
// The defaults describe the five-domain reference deployment: each cluster
// carries a 3:1 split between stability and exploration oscillators, which
// pins the weighted order parameter to a plateau near 0.75.
type Config struct {
	// Clusters is the number of domain clusters. Default: 5.
	Clusters int `json:"clusters" yaml:"clusters"`

	// OscillatorsPerCluster is the population of each cluster. Default: 20.
	OscillatorsPerCluster int `json:"oscillators_per_cluster" yaml:"oscillators_per_cluster"`

	// DomainTags optionally names the clusters in index order. Missing
	// entries default to "domain-<index>".
	DomainTags []string `json:"domain_tags,omitempty" yaml:"domain_tags,omitempty"`

	// CouplingInternal is the in-cluster coupling strength. Default: 1.3.
	CouplingInternal float64 `json:"coupling_internal" yaml:"coupling_internal"`

	// CouplingExternal is the cross-cluster coupling strength. Default: 0.15.
	CouplingExternal float64 `json:"coupling_external" yaml:"coupling_external"`

	// NoiseLevel is the per-cluster base noise amplitude. Each oscillator
	// scales it by its group's noise scale. Default: 0.05.
	NoiseLevel float64 `json:"noise_level" yaml:"noise_level"`

	// BaseFrequency is the center natural frequency in radians per time
	// unit. Default: 1.0.
	BaseFrequency float64 `json:"base_frequency" yaml:"base_frequency"`

	// GroupRatio is the fraction of each cluster assigned to the stability
	// group; the remainder joins the exploration group. Default: 0.75.
	GroupRatio float64 `json:"group_ratio" yaml:"group_ratio"`

	// StabilityJitter spreads stability-group natural frequencies uniformly
	// within BaseFrequency ± StabilityJitter. Default: 0.1.
	StabilityJitter float64 `json:"stability_jitter" yaml:"stability_jitter"`

	// ExplorationDetuneMin and ExplorationDetuneMax bound the |offset| of
	// exploration-group frequencies from BaseFrequency (sign drawn at
	// random). Keeping the minimum above CouplingInternal leaves these
	// oscillators permanently drifting, which is what holds the plateau at
	// the stability group's share of the population. Defaults: 1.5 and 3.0.
	ExplorationDetuneMin float64 `json:"exploration_detune_min" yaml:"exploration_detune_min"`
	ExplorationDetuneMax float64 `json:"exploration_detune_max" yaml:"exploration_detune_max"`

	// StabilityWeight and ExplorationWeight are the per-group coherence
	// weights. Both must stay in [0, 1] so the order parameter cannot leave
	// [0, 1]. Defaults: 1.0 and 0.1.
	StabilityWeight   float64 `json:"stability_weight" yaml:"stability_weight"`
	ExplorationWeight float64 `json:"exploration_weight" yaml:"exploration_weight"`

	// StabilityNoiseScale and ExplorationNoiseScale multiply the cluster
	// noise level per group. Defaults: 0.5 and 1.5.
	StabilityNoiseScale   float64 `json:"stability_noise_scale" yaml:"stability_noise_scale"`
	ExplorationNoiseScale float64 `json:"exploration_noise_scale" yaml:"exploration_noise_scale"`

	// Ouroboros tunes the per-cluster mode machine.
	Ouroboros OuroborosConfig `json:"ouroboros" yaml:"ouroboros"`

	// Seed seeds the engine's private random source. The same config and
	// seed replay the same trajectory exactly. Default: 1.
	Seed int64 `json:"seed" yaml:"seed"`
}

// OuroborosConfig tunes the stability/exploration mode machine.
type OuroborosConfig struct {
	// StabilityTarget is the coherence the blend pulls toward while a
	// cluster is in stability mode. Default: 0.75.
	StabilityTarget float64 `json:"stability_target" yaml:"stability_target"`

	// ExplorationTarget is the blend target in exploration mode. Default: 0.25.
	ExplorationTarget float64 `json:"exploration_target" yaml:"exploration_target"`

	// SwitchToExploreBelow forces stability to yield when coherence drops
	// under it. Default: 0.65.
	SwitchToExploreBelow float64 `json:"switch_to_explore_below" yaml:"switch_to_explore_below"`

	// SwitchToStabilityAbove forces exploration to yield when coherence
	// rises over it. Default: 0.70.
	SwitchToStabilityAbove float64 `json:"switch_to_stability_above" yaml:"switch_to_stability_above"`

	// StabilityCycleTarget and ExplorationCycleTarget bound the dwell time
	// in each mode, in cycles. The 3:1 defaults alternate three stability
	// cycles with one exploration cycle when no threshold fires first.
	StabilityCycleTarget   int `json:"stability_cycle_target" yaml:"stability_cycle_target"`
	ExplorationCycleTarget int `json:"exploration_cycle_target" yaml:"exploration_cycle_target"`
}

// DefaultConfig returns the reference configuration: five clusters of twenty
// oscillators with the 3:1 group split.
func DefaultConfig() Config {
	return Config{
		Clusters:              5,
		OscillatorsPerCluster: 20,
		CouplingInternal:      1.3,
		CouplingExternal:      0.15,
		NoiseLevel:            0.05,
		BaseFrequency:         1.0,
		GroupRatio:            0.75,
		StabilityJitter:       0.1,
		ExplorationDetuneMin:  1.5,
		ExplorationDetuneMax:  3.0,
		StabilityWeight:       1.0,
		ExplorationWeight:     0.1,
		StabilityNoiseScale:   0.5,
		ExplorationNoiseScale: 1.5,
		Ouroboros:             DefaultOuroborosConfig(),
		Seed:                  1,
	}
}

// DefaultOuroborosConfig returns the 3:1 stability:exploration cycle defaults.
func DefaultOuroborosConfig() OuroborosConfig {
	return OuroborosConfig{
		StabilityTarget:        0.75,
		ExplorationTarget:      0.25,
		SwitchToExploreBelow:   0.65,
		SwitchToStabilityAbove: 0.70,
		StabilityCycleTarget:   3,
		ExplorationCycleTarget: 1,
	}
}

// Validate checks the configuration, returning the first problem found.
func (c Config) Validate() error {
	if c.Clusters < 1 {
		return fmt.Errorf("clusters must be at least 1, got %d", c.Clusters)
	}
	if c.OscillatorsPerCluster < 1 {
		return fmt.Errorf("oscillators_per_cluster must be at least 1, got %d", c.OscillatorsPerCluster)
	}
	if len(c.DomainTags) > c.Clusters {
		return fmt.Errorf("domain_tags has %d entries for %d clusters", len(c.DomainTags), c.Clusters)
	}
	if c.CouplingInternal < 0 {
		return fmt.Errorf("coupling_internal must be non-negative, got %f", c.CouplingInternal)
	}
	if c.CouplingExternal < 0 {
		return fmt.Errorf("coupling_external must be non-negative, got %f", c.CouplingExternal)
	}
	if c.NoiseLevel < 0 {
		return fmt.Errorf("noise_level must be non-negative, got %f", c.NoiseLevel)
	}
	if c.GroupRatio < 0 || c.GroupRatio > 1 {
		return fmt.Errorf("group_ratio must be between 0 and 1, got %f", c.GroupRatio)
	}
	if c.StabilityJitter < 0 {
		return fmt.Errorf("stability_jitter must be non-negative, got %f", c.StabilityJitter)
	}
	if c.ExplorationDetuneMin < 0 {
		return fmt.Errorf("exploration_detune_min must be non-negative, got %f", c.ExplorationDetuneMin)
	}
	if c.ExplorationDetuneMax < c.ExplorationDetuneMin {
		return fmt.Errorf("exploration_detune_max %f is below exploration_detune_min %f",
			c.ExplorationDetuneMax, c.ExplorationDetuneMin)
	}
	if c.StabilityWeight < 0 || c.StabilityWeight > 1 {
		return fmt.Errorf("stability_weight must be between 0 and 1, got %f", c.StabilityWeight)
	}
	if c.ExplorationWeight < 0 || c.ExplorationWeight > 1 {
		return fmt.Errorf("exploration_weight must be between 0 and 1, got %f", c.ExplorationWeight)
	}
	if c.StabilityNoiseScale < 0 {
		return fmt.Errorf("stability_noise_scale must be non-negative, got %f", c.StabilityNoiseScale)
	}
	if c.ExplorationNoiseScale < 0 {
		return fmt.Errorf("exploration_noise_scale must be non-negative, got %f", c.ExplorationNoiseScale)
	}
	if err := c.Ouroboros.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks the mode machine parameters.
func (o OuroborosConfig) Validate() error {
	if o.StabilityTarget < 0 || o.StabilityTarget > 1 {
		return fmt.Errorf("stability_target must be between 0 and 1, got %f", o.StabilityTarget)
	}
	if o.ExplorationTarget < 0 || o.ExplorationTarget > 1 {
		return fmt.Errorf("exploration_target must be between 0 and 1, got %f", o.ExplorationTarget)
	}
	if o.SwitchToExploreBelow < 0 || o.SwitchToExploreBelow > 1 {
		return fmt.Errorf("switch_to_explore_below must be between 0 and 1, got %f", o.SwitchToExploreBelow)
	}
	if o.SwitchToStabilityAbove < 0 || o.SwitchToStabilityAbove > 1 {
		return fmt.Errorf("switch_to_stability_above must be between 0 and 1, got %f", o.SwitchToStabilityAbove)
	}
	if o.StabilityCycleTarget < 1 {
		return fmt.Errorf("stability_cycle_target must be at least 1, got %d", o.StabilityCycleTarget)
	}
	if o.ExplorationCycleTarget < 1 {
		return fmt.Errorf("exploration_cycle_target must be at least 1, got %d", o.ExplorationCycleTarget)
	}
	return nil
}
