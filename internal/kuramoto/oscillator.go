package kuramoto

import "math"

const twoPi = 2 * math.Pi

// Group classifies an oscillator's role inside its cluster. Stability
// oscillators carry tight natural frequencies and damped noise, so they lock
// to the mean field. Exploration oscillators are detuned beyond the locking
// range and carry amplified noise, so they keep drifting.
type Group int

const (
	GroupStability Group = iota
	GroupExploration
)

func (g Group) String() string {
	switch g {
	case GroupStability:
		return "stability"
	case GroupExploration:
		return "exploration"
	default:
		return "unknown"
	}
}

// Oscillator is a single phase oscillator. Phase is kept in [0, 2π) after
// every update; Weight scales its contribution to cluster coherence.
type Oscillator struct {
	Phase       float64
	NaturalFreq float64
	Weight      float64
	Group       Group
}

// wrapPhase maps an angle into [0, 2π). Wrapping, never clamping: a phase
// crossing 2π re-enters at 0.
func wrapPhase(theta float64) float64 {
	theta = math.Mod(theta, twoPi)
	if theta < 0 {
		theta += twoPi
	}
	// Rounding after the negative adjustment can land exactly on 2π.
	if theta >= twoPi {
		return 0
	}
	return theta
}
