// SPDX-License-Identifier: MIT
package pipeline

import "math"

// The level gate publishes an undefined estimate (0 Hz) for blocks whose
// peak level is below the threshold, so silence reads as "--" rather than
// whatever noise bin happens to win. It is off by default.

func (p *Pipeline) EnableGate() {
	p.gateEnabled.Store(true)
}

func (p *Pipeline) DisableGate() {
	p.gateEnabled.Store(false)
}

func (p *Pipeline) GateEnabled() bool {
	return p.gateEnabled.Load()
}

// SetGateThreshold adjusts the gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (p *Pipeline) SetGateThreshold(threshold float64) {
	if threshold < 0.0 || math.IsNaN(threshold) {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	p.gateThreshold.Store(math.Float64bits(threshold))
}

// GetGateThreshold returns the current gate threshold in [0, 1].
func (p *Pipeline) GetGateThreshold() float64 {
	return math.Float64frombits(p.gateThreshold.Load())
}

// peakLevel returns the largest absolute sample value.
func peakLevel(samples []float32) float64 {
	var peak float32
	for _, s := range samples {
		peak = max(peak, s, -s)
	}
	return float64(peak)
}
