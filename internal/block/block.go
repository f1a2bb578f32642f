// SPDX-License-Identifier: MIT
/*
Package block defines what crosses the boundary between audio capture and
processing: a buffer of float32 samples plus the device status reported with
it. It has no cgo dependencies so the processing side can be built and tested
without PortAudio.
*/
package block

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-audio/audio"
)

// Status carries device warnings delivered alongside a block. They are
// informational: the block is processed regardless.
type Status uint32

const (
	InputUnderflow Status = 1 << iota
	InputOverflow
)

func (s Status) String() string {
	if s == 0 {
		return "ok"
	}
	var parts []string
	if s&InputUnderflow != 0 {
		parts = append(parts, "input underflow")
	}
	if s&InputOverflow != 0 {
		parts = append(parts, "input overflow")
	}
	if rest := s &^ (InputUnderflow | InputOverflow); rest != 0 {
		parts = append(parts, fmt.Sprintf("unknown(%#x)", uint32(rest)))
	}
	return strings.Join(parts, ", ")
}

var ErrChannelLayout = errors.New("buffer length is not a multiple of the channel count")

// Handler receives each captured buffer. It runs on the capture callback and
// must return quickly without blocking.
type Handler func(buf *audio.Float32Buffer, status Status)

// NewBuffer allocates a buffer for frames frames of the given layout.
func NewBuffer(frames, channels, sampleRate int) *audio.Float32Buffer {
	return &audio.Float32Buffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]float32, frames*channels),
		SourceBitDepth: 32,
	}
}

// FirstChannel copies channel 0 of interleaved into dst and returns the
// number of frames copied. A mono source is copied as is.
func FirstChannel(dst, interleaved []float32, channels int) (int, error) {
	if channels <= 1 {
		return copy(dst, interleaved), nil
	}
	if len(interleaved)%channels != 0 {
		return 0, fmt.Errorf("%w: %d samples, %d channels", ErrChannelLayout, len(interleaved), channels)
	}
	frames := min(len(dst), len(interleaved)/channels)
	for i := range frames {
		dst[i] = interleaved[i*channels]
	}
	return frames, nil
}
