// SPDX-License-Identifier: MIT
package utils

import "math"

// FillSine writes a sine wave of the given frequency and peak amplitude into
// dst, starting at phase (radians). It returns the phase following the last
// sample so consecutive calls produce a continuous tone.
func FillSine(dst []float32, sampleRate, frequency, amplitude, phase float64) float64 {
	step := 2 * math.Pi * frequency / sampleRate
	for i := range dst {
		dst[i] = float32(amplitude * math.Sin(phase))
		phase += step
	}
	return math.Mod(phase, 2*math.Pi)
}

// GenerateSineWave returns size samples of a 0.9 amplitude sine starting at phase 0.
func GenerateSineWave(size int, sampleRate, frequency float64) []float32 {
	buffer := make([]float32, size)
	FillSine(buffer, sampleRate, frequency, 0.9, 0)
	return buffer
}

// GenerateComplexWave returns a 440Hz fundamental with 880Hz and 1320Hz harmonics.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// FindPeakBin returns the index of the largest magnitude in
// magnitudes[startBin:endBin+1]. Ties resolve to the lowest index.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
