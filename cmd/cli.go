// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"
	"time"

	"pitchscope/internal/config"
	"pitchscope/pkg/build"

	"github.com/spf13/cobra"
)

// Command selects what main runs once arguments are parsed.
type Command int

const (
	CommandNone    Command = iota // Help or version was printed.
	CommandMonitor                // Live waveform and pitch.
	CommandList                   // Print devices and exit.
	CommandDevices                // Browse devices, then monitor the chosen one.
)

// Options is the parsed command line: the resolved configuration plus the
// settings that only make sense for one run.
type Options struct {
	Command Command
	Config  *config.Config
	LogFile string // Log destination while the terminal UI owns the screen.
	Plain   bool   // Print pitch lines instead of running the terminal UI.
}

// flagValues receives flag values before they are layered onto the config.
type flagValues struct {
	configPath    string
	verbose       bool
	logLevel      string
	device        int
	sampleRate    float64
	blockSize     int
	inputChannels int
	lowLatency    bool
	source        string
	toneHz        float64
	window        string
	scale         float64
	offset        float64
	gate          float64
	queueSize     int
	bufferSeconds float64
	plotSamples   int
	refresh       time.Duration
}

// ParseArgs parses args (without the program name). Configuration is
// layered defaults, config file, PITCHSCOPE_* environment, then any flag
// given explicitly, and validated once all layers are applied.
func ParseArgs(args []string, out io.Writer) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	opts := &Options{}
	var fv flagValues

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, &fv)
			if err != nil {
				return err
			}
			opts.Config = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandMonitor
			return nil
		},
	}
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Run: func(cmd *cobra.Command, args []string) {
			opts.Command = CommandList
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "devices",
		Short: "Browse input devices and monitor the selected one",
		Run: func(cmd *cobra.Command, args []string) {
			opts.Command = CommandDevices
		},
	})

	pf := rootCmd.PersistentFlags()

	// Configuration and logging
	pf.StringVar(&fv.configPath, "config", "",
		"Path to a YAML config file (default: ./pitchscope.yaml or ./config.yaml if present)")
	pf.BoolVarP(&fv.verbose, "verbose", "v", false,
		"Show debug output")
	pf.StringVar(&fv.logLevel, "log-level", config.DefaultLogLevel,
		"Log level: debug, info, warn, error")
	pf.StringVar(&opts.LogFile, "log-file", "",
		"Write logs to this file while the terminal UI is running (default: discard)")
	pf.BoolVar(&opts.Plain, "plain", false,
		"Print one pitch line per refresh instead of running the terminal UI")

	// Audio Device Configuration
	pf.IntVarP(&fv.device, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.Float64VarP(&fv.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&fv.blockSize, "block-size", "b", config.DefaultBlockSize,
		"Samples per analysis block (FFT length)")
	pf.IntVarP(&fv.inputChannels, "channels", "c", config.DefaultInputChannels,
		"Channels to open on the device; the first channel is analysed")
	pf.BoolVarP(&fv.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use the device's low latency setting")
	pf.StringVar(&fv.source, "source", config.DefaultSource,
		"Input source: mic or tone")
	pf.Float64Var(&fv.toneHz, "tone-hz", config.DefaultToneHz,
		"Frequency of the synthetic tone source")

	// Analysis
	pf.StringVar(&fv.window, "window", config.DefaultWindow,
		"Analysis window: Hann, Hamming, Blackman, BlackmanNuttall, BartlettHann, Lanczos, Nuttall")
	pf.Float64Var(&fv.scale, "scale", config.DefaultCalibrationScale,
		"Calibration scale applied to every estimate (true Hz / measured Hz)")
	pf.Float64Var(&fv.offset, "offset", config.DefaultCalibrationOffset,
		"Calibration offset in Hz, added after scaling")
	pf.Float64Var(&fv.gate, "gate", config.DefaultGateThreshold,
		"Peak level in [0, 1] below which no pitch is shown (0 disables)")
	pf.IntVar(&fv.queueSize, "queue-size", config.DefaultQueueSize,
		"Blocks buffered between capture and analysis")

	// Display
	pf.Float64Var(&fv.bufferSeconds, "buffer-seconds", config.DefaultBufferSeconds,
		"Seconds of waveform history kept")
	pf.IntVar(&fv.plotSamples, "plot-samples", 0,
		"Samples drawn per frame (default: 0.1 s of audio)")
	pf.DurationVar(&fv.refresh, "refresh", config.DefaultRefresh,
		"Screen refresh interval")

	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return opts, nil
}

// resolveConfig loads the config layers and applies explicitly set flags.
func resolveConfig(cmd *cobra.Command, fv *flagValues) (*config.Config, error) {
	cfg, err := config.LoadConfig(fv.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	override := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	override("verbose", func() { cfg.Debug = fv.verbose })
	override("log-level", func() { cfg.LogLevel = fv.logLevel })
	override("device", func() { cfg.Audio.InputDevice = fv.device })
	override("sample-rate", func() { cfg.Audio.SampleRate = fv.sampleRate })
	override("block-size", func() { cfg.Audio.BlockSize = fv.blockSize })
	override("channels", func() { cfg.Audio.InputChannels = fv.inputChannels })
	override("low-latency", func() { cfg.Audio.LowLatency = fv.lowLatency })
	override("source", func() { cfg.Audio.Source = fv.source })
	override("tone-hz", func() { cfg.Audio.ToneHz = fv.toneHz })
	override("window", func() { cfg.Analysis.Window = fv.window })
	override("scale", func() { cfg.Analysis.CalibrationScale = fv.scale })
	override("offset", func() { cfg.Analysis.CalibrationOffset = fv.offset })
	override("gate", func() { cfg.Analysis.GateThreshold = fv.gate })
	override("queue-size", func() { cfg.Analysis.QueueSize = fv.queueSize })
	override("buffer-seconds", func() { cfg.Display.BufferSeconds = fv.bufferSeconds })
	override("plot-samples", func() { cfg.Display.PlotSamples = fv.plotSamples })
	override("refresh", func() { cfg.Display.Refresh = fv.refresh })

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w (after command line flags)", err)
	}
	return cfg, nil
}
