// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"math"
)

var ErrInvalidCalibration = errors.New("calibration scale must be positive and finite")

// Calibration corrects device drift after the spectral estimate. If a true
// 1000 Hz tone reads as 990 Hz, Scale = 1000/990 restores it. OffsetHz is
// added after scaling.
type Calibration struct {
	Scale    float64
	OffsetHz float64
}

// Identity is the calibration that leaves estimates untouched.
var Identity = Calibration{Scale: 1.0}

// Apply returns hz*Scale + OffsetHz.
func (c Calibration) Apply(hz float64) float64 {
	return hz*c.Scale + c.OffsetHz
}

// Validate reports whether the calibration can be applied.
func (c Calibration) Validate() error {
	if c.Scale <= 0 || math.IsNaN(c.Scale) || math.IsInf(c.Scale, 0) {
		return ErrInvalidCalibration
	}
	if math.IsNaN(c.OffsetHz) || math.IsInf(c.OffsetHz, 0) {
		return ErrInvalidCalibration
	}
	return nil
}
