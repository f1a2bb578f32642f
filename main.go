// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pitchscope/cmd"
	"pitchscope/internal/analysis"
	"pitchscope/internal/capture"
	"pitchscope/internal/config"
	applog "pitchscope/internal/log"
	"pitchscope/internal/pipeline"
	"pitchscope/internal/tui"
	"pitchscope/pkg/build"

	tea "github.com/charmbracelet/bubbletea"
)

// main is the entry point for the pitch monitor.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and resolve configuration
//   - Execute one-off commands if requested
//   - Build the processing pipeline and the capture source
//
// 2. Concurrent Phase (Hot Path):
//   - Capture callback enqueues blocks
//   - Pipeline worker estimates pitch per block
//   - Display polls waveform and pitch on its own tick
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or the user quitting
//   - Stop capture, then drain and stop the pipeline
//   - Release PortAudio
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v", err)
	}

	opts, err := cmd.ParseArgs(os.Args[1:], os.Stdout)
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if opts.Config != nil {
		applog.SetLevel(opts.Config.Level())
	}

	switch opts.Command {
	case cmd.CommandNone:
		return

	case cmd.CommandList:
		if err := listDevices(); err != nil {
			applog.Fatalf("%v", err)
		}
		return

	case cmd.CommandDevices:
		sel, err := tui.StartDeviceListUI()
		if err != nil {
			applog.Fatalf("%v", err)
		}
		if sel == nil {
			return
		}
		opts.Config.Audio.Source = config.SourceMic
		opts.Config.Audio.InputDevice = sel.Device.ID
		opts.Config.Audio.SampleRate = sel.SampleRate
		opts.Config.Audio.InputChannels = min(opts.Config.Audio.InputChannels, sel.Device.MaxInputChannels)
		if err := opts.Config.Validate(); err != nil {
			applog.Fatalf("%v", err)
		}
	}

	if err := run(opts); err != nil {
		applog.Fatalf("%v", err)
	}
}

func listDevices() error {
	if err := capture.Initialize(); err != nil {
		return err
	}
	defer capture.Terminate()

	return capture.ListDevices(os.Stdout)
}

// run builds the pipeline and capture source, drives the display until the
// user quits or a signal arrives, then shuts down in dependency order.
func run(opts *cmd.Options) error {
	cfg := opts.Config

	window, err := analysis.ParseWindowFunc(cfg.Analysis.Window)
	if err != nil {
		return err
	}
	p, err := pipeline.New(pipeline.Options{
		BlockSize:     cfg.Audio.BlockSize,
		SampleRate:    cfg.Audio.SampleRate,
		BufferSeconds: cfg.Display.BufferSeconds,
		QueueSize:     cfg.Analysis.QueueSize,
		Window:        window,
		Calibration: analysis.Calibration{
			Scale:    cfg.Analysis.CalibrationScale,
			OffsetHz: cfg.Analysis.CalibrationOffset,
		},
		GateThreshold: cfg.Analysis.GateThreshold,
	})
	if err != nil {
		return err
	}

	var (
		source capture.Source
		label  string
	)
	if cfg.Audio.Source == config.SourceTone {
		tone, err := capture.NewToneSource(cfg.Audio.SampleRate, cfg.Audio.BlockSize, cfg.Audio.ToneHz, p.Handle)
		if err != nil {
			return err
		}
		source, label = tone, fmt.Sprintf("Tone %.2f Hz", cfg.Audio.ToneHz)
	} else {
		if err := capture.Initialize(); err != nil {
			return err
		}
		defer capture.Terminate()

		stream, err := capture.NewStream(cfg, p.Handle)
		if err != nil {
			return err
		}
		source, label = stream, stream.Device().Name
	}

	// The terminal UI owns the screen, so logs go to a file or nowhere.
	if !opts.Plain {
		restore, err := redirectLogs(opts.LogFile)
		if err != nil {
			return err
		}
		defer restore()
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p.Start()
	if err := source.Start(); err != nil {
		p.Stop()
		return err
	}

	if opts.Plain {
		printPitch(ctx, p, cfg.Display.Refresh, os.Stdout)
	} else {
		model := tui.NewMonitorModel(p, cfg.PlotSampleCount(), cfg.Display.Refresh, label)
		err = tui.StartMonitorUI(ctx, model)
		if errors.Is(err, tea.ErrProgramKilled) {
			err = nil
		}
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if stopErr := source.Stop(); stopErr != nil {
		applog.Errorf("Capture: stop failed: %v", stopErr)
	}
	p.Stop()

	s := p.Stats()
	fmt.Fprintf(os.Stderr, "Stopped. Session %s: processed %d, failed %d, dropped %d, flagged %d blocks.\n",
		s.SessionID, s.Processed, s.Failed, s.Dropped, s.Flagged)
	return err
}

// printPitch writes the latest estimate every refresh until ctx is done.
func printPitch(ctx context.Context, p *pipeline.Pipeline, refresh time.Duration, w io.Writer) {
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	var last pipeline.Pitch
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if cur := p.CurrentPitch(); cur != last {
				fmt.Fprintln(w, tui.FormatPitch(cur))
				last = cur
			}
		}
	}
}

func redirectLogs(path string) (restore func(), err error) {
	if path == "" {
		applog.SetOutput(io.Discard)
		return func() { applog.SetOutput(os.Stderr) }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	applog.SetOutput(f)
	return func() {
		applog.SetOutput(os.Stderr)
		f.Close()
	}, nil
}
