package kuramoto

import "encoding/json"

// Mode is the Ouroboros cycle position of a cluster. Stability mode
// consolidates coherence around a high target; exploration mode deliberately
// loosens it. The machine alternates the two at a 3:1 dwell ratio unless a
// coherence threshold forces an earlier switch.
type Mode int

const (
	ModeStability Mode = iota
	ModeExploration
)

func (m Mode) String() string {
	switch m {
	case ModeStability:
		return "stability"
	case ModeExploration:
		return "exploration"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the mode as its string name.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// target returns the coherence blend target for the mode.
func (m Mode) target(o OuroborosConfig) float64 {
	if m == ModeExploration {
		return o.ExplorationTarget
	}
	return o.StabilityTarget
}

// cycleTarget returns the dwell bound for the mode.
func (m Mode) cycleTarget(o OuroborosConfig) int {
	if m == ModeExploration {
		return o.ExplorationCycleTarget
	}
	return o.StabilityCycleTarget
}

// ModeTransition records one mode switch for diagnostics.
type ModeTransition struct {
	Cluster   int     `json:"cluster"`
	Domain    string  `json:"domain"`
	Cycle     int     `json:"cycle"`
	From      Mode    `json:"from"`
	To        Mode    `json:"to"`
	Coherence float64 `json:"coherence"`
}

// advanceMode runs one step of the Ouroboros machine against the cluster's
// current coherence. Stability yields to exploration when coherence falls
// below the explore threshold or the dwell bound expires; exploration yields
// back when coherence clears the stability threshold or its short dwell
// expires. At most one switch happens per tick; a switch resets the counter
// and installs the new mode's dwell bound.
func (cl *Cluster) advanceMode(cfg OuroborosConfig, cycle int) (ModeTransition, bool) {
	cl.ModeCycles++
	switch cl.Mode {
	case ModeStability:
		cl.StabilityCycles++
	case ModeExploration:
		cl.ExplorationCycles++
	}

	next := cl.Mode
	switch cl.Mode {
	case ModeStability:
		if cl.Coherence < cfg.SwitchToExploreBelow || cl.ModeCycles >= cl.ModeCycleTarget {
			next = ModeExploration
		}
	case ModeExploration:
		if cl.Coherence > cfg.SwitchToStabilityAbove || cl.ModeCycles >= cl.ModeCycleTarget {
			next = ModeStability
		}
	}
	if next == cl.Mode {
		return ModeTransition{}, false
	}

	tr := ModeTransition{
		Cluster:   cl.ID,
		Domain:    cl.DomainTag,
		Cycle:     cycle,
		From:      cl.Mode,
		To:        next,
		Coherence: cl.Coherence,
	}
	cl.Mode = next
	cl.ModeCycles = 0
	cl.ModeCycleTarget = next.cycleTarget(cfg)
	return tr, true
}
