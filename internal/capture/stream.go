// SPDX-License-Identifier: MIT
/*
Package capture is the boundary between the audio hardware and the pipeline.
It opens a PortAudio input stream, reduces each callback buffer to channel 0
and hands it to a block.Handler together with any device status flags.

Thread Safety:
- The callback runs on a PortAudio thread and only touches pre-allocated buffers
- Start and Stop are called from the control goroutine
*/
package capture

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"pitchscope/internal/block"
	"pitchscope/internal/config"
	applog "pitchscope/internal/log"

	"github.com/go-audio/audio"
	"github.com/gordonklaus/portaudio"
)

var ErrNotStarted = errors.New("capture stream not started")

// Source delivers captured blocks to a handler until stopped.
type Source interface {
	Start() error
	Stop() error
}

// Stream captures blocks from a PortAudio input device.
type Stream struct {
	device     *portaudio.DeviceInfo
	latency    time.Duration
	channels   int
	frames     int
	sampleRate float64

	handler block.Handler
	buf     *audio.Float32Buffer // Mono block handed to the handler, reused.

	stream    *portaudio.Stream
	malformed atomic.Uint64
}

// NewStream resolves the configured input device and prepares a stream that
// calls handler once per block. PortAudio must be initialized.
func NewStream(cfg *config.Config, handler block.Handler) (*Stream, error) {
	device, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}
	if cfg.Audio.InputChannels > device.MaxInputChannels {
		return nil, fmt.Errorf("device %q has %d input channels, %d requested",
			device.Name, device.MaxInputChannels, cfg.Audio.InputChannels)
	}

	s := &Stream{
		device:     device,
		channels:   cfg.Audio.InputChannels,
		frames:     cfg.Audio.BlockSize,
		sampleRate: cfg.Audio.SampleRate,
		handler:    handler,
		buf:        block.NewBuffer(cfg.Audio.BlockSize, 1, int(cfg.Audio.SampleRate)),
	}
	if cfg.Audio.LowLatency {
		s.latency = device.DefaultLowInputLatency
	} else {
		s.latency = device.DefaultHighInputLatency
	}
	return s, nil
}

// Start opens and starts the input stream.
func (s *Stream) Start() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: s.channels,
			Device:   s.device,
			Latency:  s.latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: s.frames,
		SampleRate:      s.sampleRate,
	}

	stream, err := portaudio.OpenStream(params, s.process)
	if err != nil {
		return fmt.Errorf("failed to open input stream on %q: %w", s.device.Name, err)
	}
	s.stream = stream

	if err := s.stream.Start(); err != nil {
		s.stream.Close()
		s.stream = nil
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	applog.Infof("Capture: %s, %d ch @ %.0f Hz, %d frames/block, latency %v",
		s.device.Name, s.channels, s.sampleRate, s.frames, s.latency)
	return nil
}

// Stop stops and closes the stream. After Stop returns no further callbacks run.
func (s *Stream) Stop() error {
	if s.stream == nil {
		return ErrNotStarted
	}
	if err := s.stream.Stop(); err != nil {
		return err
	}
	if err := s.stream.Close(); err != nil {
		return err
	}
	s.stream = nil

	if n := s.malformed.Load(); n > 0 {
		applog.Warnf("Capture: %d callback buffers had an unexpected length and were skipped", n)
	}
	return nil
}

// Device returns the resolved input device.
func (s *Stream) Device() *portaudio.DeviceInfo {
	return s.device
}

// process is the PortAudio callback. It copies channel 0 into the reusable
// mono block, so it never allocates.
func (s *Stream) process(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	n, err := block.FirstChannel(s.buf.Data, in, s.channels)
	if err != nil || n != len(s.buf.Data) {
		s.malformed.Add(1)
		return
	}
	s.handler(s.buf, statusFromFlags(flags))
}

func statusFromFlags(flags portaudio.StreamCallbackFlags) block.Status {
	var status block.Status
	if flags&portaudio.InputUnderflow != 0 {
		status |= block.InputUnderflow
	}
	if flags&portaudio.InputOverflow != 0 {
		status |= block.InputOverflow
	}
	return status
}
