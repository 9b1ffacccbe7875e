package kuramoto

import "errors"

// Sentinel errors reported by the engine and the perturbation controller.
var (
	// ErrClusterIndex is returned when an operation names a cluster index
	// outside [0, ClusterCount).
	ErrClusterIndex = errors.New("kuramoto: cluster index out of range")

	// ErrPerturbationActive is returned by Apply when a target cluster is
	// already perturbed.
	ErrPerturbationActive = errors.New("kuramoto: perturbation already active")

	// ErrNotPerturbed is returned by Release when a target cluster has no
	// active perturbation.
	ErrNotPerturbed = errors.New("kuramoto: cluster not perturbed")
)
