// Package stats provides the small numeric helpers shared by the engine,
// optimizer and experiment layers.
package stats

import "math"

// Epsilon guards divisions and square roots against degenerate zero spreads.
const Epsilon = 1e-9

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Variance returns the population variance of xs, or 0 for fewer than
// two values.
func Variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation of xs. Epsilon is added
// under the root so identical samples still produce a nonzero, invertible
// spread.
func StdDev(xs []float64) float64 {
	return math.Sqrt(Variance(xs) + Epsilon)
}

// Clamp01 clips x into [0, 1]. NaN clamps to 0.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
