// SPDX-License-Identifier: MIT
package analysis

// Estimator turns one audio block into a frequency estimate in Hz. It is called
// from the single processing worker, never from the capture callback.
type Estimator interface {
	// Estimate returns the dominant frequency of block. The block length must
	// match the length the estimator was built for.
	Estimate(block []float32) (float64, error)
}
