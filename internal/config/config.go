// SPDX-License-Identifier: MIT
package config

import (
	"math"
	"time"
)

// Core configuration constants that define the boundaries and defaults
// for the pitch monitor.
const (
	DefaultLogLevel      = "info"
	DefaultDeviceID      = MinDeviceID // System default input device
	DefaultSampleRate    = 44100       // CD-quality audio
	DefaultBlockSize     = 2048        // ~46 ms per block at 44.1 kHz, 21.5 Hz bins
	DefaultChannels      = 1           // Analysis is mono
	DefaultInputChannels = 1
	DefaultLowLatency    = false
	DefaultSource        = SourceMic
	DefaultToneHz        = 440.0

	DefaultWindow            = "Hann"
	DefaultCalibrationScale  = 1.0
	DefaultCalibrationOffset = 0.0
	DefaultQueueSize         = 64
	DefaultGateThreshold     = 0.0 // Gate disabled

	DefaultBufferSeconds = 2.0
	DefaultPlotSeconds   = 0.1 // plot_samples = int(sample_rate * 0.1) when unset
	DefaultRefresh       = 33 * time.Millisecond

	// Hardware and processing limits
	MinDeviceID   = -1     // -1 represents system default device
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MinBlockSize  = 4      // Smallest block with an interior spectrum bin
	MaxBlockSize  = 65536
	MaxChannels   = 32
)

// Capture sources.
const (
	SourceMic  = "mic"
	SourceTone = "tone"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug    bool           `yaml:"debug"`     // Shorthand for log_level: debug.
	LogLevel string         `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio    AudioConfig    `yaml:"audio"`     // Capture settings.
	Analysis AnalysisConfig `yaml:"analysis"`  // Pitch estimation settings.
	Display  DisplayConfig  `yaml:"display"`   // Waveform history and refresh.
}

// AudioConfig holds settings related to audio capture.
type AudioConfig struct {
	InputDevice   int     `yaml:"input_device"`   // PortAudio device index for audio input (-1 for default).
	SampleRate    float64 `yaml:"sample_rate"`    // Sample rate in Hz (e.g., 44100, 48000).
	BlockSize     int     `yaml:"block_size"`     // Frames per capture block; also the FFT length.
	Channels      int     `yaml:"channels"`       // Channels entering analysis. Only mono is supported.
	InputChannels int     `yaml:"input_channels"` // Channels opened on the device; channel 0 is analysed.
	LowLatency    bool    `yaml:"low_latency"`    // Request low latency settings from PortAudio device.
	Source        string  `yaml:"source"`         // "mic" for PortAudio capture, "tone" for a synthetic sine.
	ToneHz        float64 `yaml:"tone_hz"`        // Frequency of the synthetic tone source.
}

// AnalysisConfig holds settings for the per-block pitch estimate.
type AnalysisConfig struct {
	Window            string  `yaml:"window"`                // Window function name (e.g., "Hann", "Hamming").
	CalibrationScale  float64 `yaml:"calibration_scale"`     // Multiplier applied to the raw estimate.
	CalibrationOffset float64 `yaml:"calibration_offset_hz"` // Hz added after scaling.
	QueueSize         int     `yaml:"queue_size"`            // Blocks buffered between capture and processing.
	GateThreshold     float64 `yaml:"gate_threshold"`        // Peak level in [0, 1] below which no pitch is shown (0 disables).
}

// DisplayConfig holds settings for the waveform history and the screen.
type DisplayConfig struct {
	BufferSeconds float64       `yaml:"buffer_seconds"` // Waveform history kept in the ring buffer.
	PlotSamples   int           `yaml:"plot_samples"`   // Samples drawn per frame (0 derives int(sample_rate * 0.1)).
	Refresh       time.Duration `yaml:"refresh"`        // Screen refresh interval.
}

// NewConfig returns a Config populated with default values. It is the base
// that a config file, the environment and command line flags are applied to.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:   DefaultDeviceID,
			SampleRate:    DefaultSampleRate,
			BlockSize:     DefaultBlockSize,
			Channels:      DefaultChannels,
			InputChannels: DefaultInputChannels,
			LowLatency:    DefaultLowLatency,
			Source:        DefaultSource,
			ToneHz:        DefaultToneHz,
		},
		Analysis: AnalysisConfig{
			Window:            DefaultWindow,
			CalibrationScale:  DefaultCalibrationScale,
			CalibrationOffset: DefaultCalibrationOffset,
			QueueSize:         DefaultQueueSize,
			GateThreshold:     DefaultGateThreshold,
		},
		Display: DisplayConfig{
			BufferSeconds: DefaultBufferSeconds,
			Refresh:       DefaultRefresh,
		},
	}
}

// PlotSampleCount returns the number of samples drawn per frame, deriving
// it from the sample rate when plot_samples is unset.
func (c *Config) PlotSampleCount() int {
	if c.Display.PlotSamples > 0 {
		return c.Display.PlotSamples
	}
	return int(c.Audio.SampleRate * DefaultPlotSeconds)
}

// RingCapacity returns the waveform ring length in samples.
func (c *Config) RingCapacity() int {
	return int(math.Round(c.Audio.SampleRate * c.Display.BufferSeconds))
}
