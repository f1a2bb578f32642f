// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math/cmplx"
	"sync"

	applog "pitchscope/internal/log"
	"pitchscope/pkg/bitint"
	"pitchscope/pkg/utils"

	"gonum.org/v1/gonum/dsp/fourier"
)

// MinBlockSize is the smallest block that still has interior bins to refine.
const MinBlockSize = 4

var (
	ErrBlockLength       = errors.New("block length does not match estimator block size")
	ErrInvalidBlockSize  = errors.New("block size too small")
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
)

// Pre-allocated buffers for one estimate.
type pitchWorkspace struct {
	input     []float64    // Windowed block.
	fftOutput []complex128 // N/2+1 complex bins.
	magnitude []float64    // |X[k]| with the DC bin cleared.
	window    []float64    // Window coefficients, fixed at construction.
	mu        sync.RWMutex // Guards input, fftOutput and magnitude.
}

// PitchEstimator finds the dominant frequency of a block: window, real FFT,
// DC removal, peak search and parabolic refinement, then calibration. It
// keeps no state between blocks beyond the reusable workspace.
type PitchEstimator struct {
	fftCalculator *fourier.FFT
	blockSize     int
	sampleRate    float64
	windowType    WindowFunc
	calibration   Calibration
	workspace     pitchWorkspace
}

// Compile-time check for the interface implementation.
var _ Estimator = (*PitchEstimator)(nil)

// NewPitchEstimator builds an estimator for blocks of exactly blockSize samples.
func NewPitchEstimator(blockSize int, sampleRate float64, windowType WindowFunc, cal Calibration) (*PitchEstimator, error) {
	if blockSize < MinBlockSize {
		return nil, fmt.Errorf("%w: got %d, need at least %d", ErrInvalidBlockSize, blockSize, MinBlockSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: got %f", ErrInvalidSampleRate, sampleRate)
	}
	if err := cal.Validate(); err != nil {
		return nil, fmt.Errorf("%w: scale %v, offset %v", err, cal.Scale, cal.OffsetHz)
	}
	if !bitint.IsPowerOfTwo(blockSize) {
		applog.Warnf("Analysis: block size %d is not a power of 2, FFT will be slower", blockSize)
	}

	coeffs, err := windowCoefficients(blockSize, windowType)
	if err != nil {
		return nil, err
	}

	bins := blockSize/2 + 1

	applog.Infof("Analysis: Initializing PitchEstimator (Size: %d, SampleRate: %.1f Hz, Window: %v, Bin: %.2f Hz)",
		blockSize, sampleRate, windowType, sampleRate/float64(blockSize))

	return &PitchEstimator{
		fftCalculator: fourier.NewFFT(blockSize),
		blockSize:     blockSize,
		sampleRate:    sampleRate,
		windowType:    windowType,
		calibration:   cal,
		workspace: pitchWorkspace{
			input:     make([]float64, blockSize),
			fftOutput: make([]complex128, bins),
			magnitude: make([]float64, bins),
			window:    coeffs,
		},
	}, nil
}

// Estimate returns the calibrated dominant frequency of block in Hz. A block
// of the wrong length is rejected before any work is done. A silent block
// still yields a number: with DC cleared, whichever bin holds the most
// residual energy wins.
func (p *PitchEstimator) Estimate(block []float32) (float64, error) {
	if len(block) != p.blockSize {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrBlockLength, len(block), p.blockSize)
	}

	ws := &p.workspace
	ws.mu.Lock()
	defer ws.mu.Unlock()

	for i, s := range block {
		ws.input[i] = float64(s) * ws.window[i]
	}

	p.fftCalculator.Coefficients(ws.fftOutput, ws.input)
	for i, c := range ws.fftOutput {
		ws.magnitude[i] = cmplx.Abs(c)
	}
	ws.magnitude[0] = 0

	last := len(ws.magnitude) - 1
	peak := utils.FindPeakBin(ws.magnitude, 0, last)

	delta := 0.0
	if peak >= 1 && peak < last {
		delta = ParabolicOffset(ws.magnitude[peak-1], ws.magnitude[peak], ws.magnitude[peak+1])
	}

	hz := (float64(peak) + delta) * p.sampleRate / float64(p.blockSize)
	return p.calibration.Apply(hz), nil
}

// ParabolicOffset returns the vertex offset, in bins, of the parabola through
// (-1, a), (0, b), (1, c). A flat triple has no vertex and yields 0.
func ParabolicOffset(a, b, c float64) float64 {
	denominator := a - 2*b + c
	if denominator == 0 {
		return 0
	}
	return 0.5 * (a - c) / denominator
}

// Magnitudes returns a copy of the spectrum behind the latest estimate.
func (p *PitchEstimator) Magnitudes() []float64 {
	p.workspace.mu.RLock()
	defer p.workspace.mu.RUnlock()

	magCopy := make([]float64, len(p.workspace.magnitude))
	copy(magCopy, p.workspace.magnitude)
	return magCopy
}

// FrequencyForBin returns the uncalibrated centre frequency of binIndex, or 0
// outside [0, N/2].
func (p *PitchEstimator) FrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= len(p.workspace.magnitude) {
		return 0.0
	}
	return p.fftCalculator.Freq(binIndex) * p.sampleRate
}

// BinWidth returns sampleRate / blockSize.
func (p *PitchEstimator) BinWidth() float64 {
	return p.sampleRate / float64(p.blockSize)
}

func (p *PitchEstimator) BlockSize() int {
	return p.blockSize
}

func (p *PitchEstimator) SampleRate() float64 {
	return p.sampleRate
}

func (p *PitchEstimator) Window() WindowFunc {
	return p.windowType
}

func (p *PitchEstimator) Calibration() Calibration {
	return p.calibration
}
