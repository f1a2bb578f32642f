// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"pitchscope/internal/analysis"
	applog "pitchscope/internal/log"
	"pitchscope/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. PITCHSCOPE_SAMPLE_RATE.
const EnvPrefix = "PITCHSCOPE_"

var ErrInvalidConfig = errors.New("invalid configuration")

// defaultPaths are searched in order when LoadConfig is given no path.
var defaultPaths = []string{
	"pitchscope.yaml",
	"config.yaml",
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches the default locations. If no file is found, it uses built-in defaults.
// After loading defaults or from file, it applies environment variable overrides and
// validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		for _, candidate := range defaultPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("Config: Loaded %s", path)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting against the limits of the capture and
// analysis stages. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return invalid("log_level %q is not one of debug, info, warn, error, fatal", c.LogLevel)
	}

	a := c.Audio
	if a.InputDevice < MinDeviceID {
		return invalid("audio.input_device must be >= %d, got %d", MinDeviceID, a.InputDevice)
	}
	if !(a.SampleRate >= MinSampleRate && a.SampleRate <= MaxSampleRate) {
		return invalid("audio.sample_rate must be in [%d, %d] Hz, got %v", MinSampleRate, MaxSampleRate, a.SampleRate)
	}
	if a.BlockSize < MinBlockSize || a.BlockSize > MaxBlockSize {
		return invalid("audio.block_size must be in [%d, %d], got %d", MinBlockSize, MaxBlockSize, a.BlockSize)
	}
	if !bitint.IsPowerOfTwo(a.BlockSize) {
		applog.Warnf("Config: audio.block_size %d is not a power of two, next is %d",
			a.BlockSize, bitint.NextPowerOfTwo(a.BlockSize))
	}
	if a.Channels != 1 {
		return invalid("audio.channels must be 1 (mono analysis), got %d", a.Channels)
	}
	if a.InputChannels < 1 || a.InputChannels > MaxChannels {
		return invalid("audio.input_channels must be in [1, %d], got %d", MaxChannels, a.InputChannels)
	}
	switch a.Source {
	case SourceMic:
	case SourceTone:
		if !(a.ToneHz > 0 && a.ToneHz < a.SampleRate/2) {
			return invalid("audio.tone_hz must be in (0, %v), got %v", a.SampleRate/2, a.ToneHz)
		}
	default:
		return invalid("audio.source must be %q or %q, got %q", SourceMic, SourceTone, a.Source)
	}

	an := c.Analysis
	if _, err := analysis.ParseWindowFunc(an.Window); err != nil {
		return fmt.Errorf("%w: analysis.window: %w", ErrInvalidConfig, err)
	}
	cal := analysis.Calibration{Scale: an.CalibrationScale, OffsetHz: an.CalibrationOffset}
	if err := cal.Validate(); err != nil {
		return fmt.Errorf("%w: analysis: %w", ErrInvalidConfig, err)
	}
	if an.QueueSize < 1 {
		return invalid("analysis.queue_size must be positive, got %d", an.QueueSize)
	}
	if !(an.GateThreshold >= 0 && an.GateThreshold <= 1) {
		return invalid("analysis.gate_threshold must be in [0, 1], got %v", an.GateThreshold)
	}

	d := c.Display
	if !(d.BufferSeconds > 0) || math.IsInf(d.BufferSeconds, 0) {
		return invalid("display.buffer_seconds must be positive, got %v", d.BufferSeconds)
	}
	if d.PlotSamples < 0 {
		return invalid("display.plot_samples must not be negative, got %d", d.PlotSamples)
	}
	if n, ring := c.PlotSampleCount(), c.RingCapacity(); n < 1 || n > ring {
		return invalid("display.plot_samples %d must be in [1, %d] (the waveform history length)", n, ring)
	}
	if d.Refresh <= 0 {
		return invalid("display.refresh must be positive, got %v", d.Refresh)
	}

	return nil
}

// Level returns the effective log level; debug: true wins over log_level.
func (c *Config) Level() applog.LogLevel {
	if c.Debug {
		return applog.LevelDebug
	}
	level, _ := applog.ParseLevel(c.LogLevel)
	return level
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// applyEnvOverrides replaces settings with PITCHSCOPE_* environment
// variables when they are set. Malformed values are logged and ignored.
func (c *Config) applyEnvOverrides() {
	envBool("DEBUG", &c.Debug)
	envString("LOG_LEVEL", &c.LogLevel)

	envInt("DEVICE", &c.Audio.InputDevice)
	envFloat("SAMPLE_RATE", &c.Audio.SampleRate)
	envInt("BLOCK_SIZE", &c.Audio.BlockSize)
	envInt("INPUT_CHANNELS", &c.Audio.InputChannels)
	envBool("LOW_LATENCY", &c.Audio.LowLatency)
	envString("SOURCE", &c.Audio.Source)
	envFloat("TONE_HZ", &c.Audio.ToneHz)

	envString("WINDOW", &c.Analysis.Window)
	envFloat("CALIBRATION_SCALE", &c.Analysis.CalibrationScale)
	envFloat("CALIBRATION_OFFSET", &c.Analysis.CalibrationOffset)
	envInt("QUEUE_SIZE", &c.Analysis.QueueSize)
	envFloat("GATE", &c.Analysis.GateThreshold)

	envFloat("BUFFER_SECONDS", &c.Display.BufferSeconds)
	envInt("PLOT_SAMPLES", &c.Display.PlotSamples)
	envDuration("REFRESH", &c.Display.Refresh)
}

func envString(name string, dst *string) {
	if val, ok := os.LookupEnv(EnvPrefix + name); ok {
		*dst = val
		applog.Infof("Config: Overriding %s from env: %s", name, val)
	}
}

func envBool(name string, dst *bool) {
	envParse(name, dst, strconv.ParseBool)
}

func envInt(name string, dst *int) {
	envParse(name, dst, strconv.Atoi)
}

func envFloat(name string, dst *float64) {
	envParse(name, dst, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func envDuration(name string, dst *time.Duration) {
	envParse(name, dst, time.ParseDuration)
}

func envParse[T any](name string, dst *T, parse func(string) (T, error)) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return
	}
	v, err := parse(val)
	if err != nil {
		applog.Warnf("Config: Ignoring %s%s=%q: %v", EnvPrefix, name, val, err)
		return
	}
	*dst = v
	applog.Infof("Config: Overriding %s from env: %v", name, v)
}
