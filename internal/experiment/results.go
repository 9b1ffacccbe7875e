package experiment

import (
	"math"

	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/kuramoto"
	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/stats"
)

const (
	// attractorMeanTolerance bounds |mean - target| for a positive verdict.
	attractorMeanTolerance = 0.025

	// attractorSpreadLimit bounds the spread of final coherences across
	// clusters.
	attractorSpreadLimit = 0.05

	// confidenceSlope maps spread to confidence: 1 - slope*stddev, floored
	// at zero.
	confidenceSlope = 10.0

	// normalBound95 is the two-sided 95% normal quantile.
	normalBound95 = 1.96
)

// Balance statuses for the stability:exploration dwell ratio.
const (
	BalanceOptimal   = "optimal"
	BalanceAdjusting = "adjusting"
)

const (
	balanceRatioLow  = 2.9
	balanceRatioHigh = 3.1
)

// ReturnTimeRecord reports one post-release recovery measurement.
// ReturnCycles is nil when the cluster failed to return within the window,
// which is an observation rather than an error.
type ReturnTimeRecord struct {
	Domain       string  `json:"domain"`
	Cluster      int     `json:"cluster"`
	Target       float64 `json:"perturbation_target"`
	ReleasedAt   int     `json:"released_at"`
	ReturnCycles *int    `json:"return_cycles"`
}

// SyncEvent marks a cycle at which every cluster's coherence entered the
// synchronized band around the global value.
type SyncEvent struct {
	Cycle           int      `json:"cycle"`
	GlobalCoherence float64  `json:"global_coherence"`
	Domains         []string `json:"domains"`
}

// BalanceRecord summarizes a cluster's stability:exploration dwell ratio
// over the run. Status is "optimal" when the ratio sits at the canonical
// 3:1 cadence and "adjusting" otherwise.
type BalanceRecord struct {
	Domain            string  `json:"domain"`
	StabilityCycles   int     `json:"stability_cycles"`
	ExplorationCycles int     `json:"exploration_cycles"`
	Ratio             float64 `json:"ratio"`
	Status            string  `json:"status"`
}

// AttractorVerdict is the run's closing statistical judgment: whether the
// final per-cluster coherences sit tightly on the target attractor.
type AttractorVerdict struct {
	IsAttractor    bool       `json:"is_attractor"`
	EstimatedValue float64    `json:"estimated_value"`
	StdDev         float64    `json:"stddev"`
	Confidence     float64    `json:"confidence"`
	Bounds         [2]float64 `json:"bounds"`
}

// Results collects everything a run produced.
type Results struct {
	RunID           string                    `json:"run_id"`
	Seed            int64                     `json:"seed"`
	Cycles          int                       `json:"cycles"`
	FinalCoherences []float64                 `json:"final_coherences"`
	GlobalCoherence float64                   `json:"global_coherence"`
	ReturnTimes     []ReturnTimeRecord        `json:"return_times,omitempty"`
	SyncEvents      []SyncEvent               `json:"sync_events,omitempty"`
	Transitions     []kuramoto.ModeTransition `json:"transitions,omitempty"`
	Balance         []BalanceRecord           `json:"balance"`
	Verdict         AttractorVerdict          `json:"verdict"`
}

// verdict judges the attractor from the final per-cluster coherences.
func verdict(final []float64, target float64) AttractorVerdict {
	mean := stats.Mean(final)
	sd := stats.StdDev(final)
	return AttractorVerdict{
		IsAttractor:    math.Abs(mean-target) < attractorMeanTolerance && sd < attractorSpreadLimit,
		EstimatedValue: mean,
		StdDev:         sd,
		Confidence:     math.Max(0, 1-confidenceSlope*sd),
		Bounds: [2]float64{
			stats.Clamp01(mean - normalBound95*sd),
			stats.Clamp01(mean + normalBound95*sd),
		},
	}
}

// balanceRecords derives the per-cluster dwell ratios from final snapshots.
func balanceRecords(snaps []kuramoto.ClusterSnapshot) []BalanceRecord {
	recs := make([]BalanceRecord, len(snaps))
	for i, s := range snaps {
		ratio := float64(s.StabilityCycles) / (float64(s.ExplorationCycles) + stats.Epsilon)
		status := BalanceAdjusting
		if ratio >= balanceRatioLow && ratio <= balanceRatioHigh {
			status = BalanceOptimal
		}
		recs[i] = BalanceRecord{
			Domain:            s.Domain,
			StabilityCycles:   s.StabilityCycles,
			ExplorationCycles: s.ExplorationCycles,
			Ratio:             ratio,
			Status:            status,
		}
	}
	return recs
}
