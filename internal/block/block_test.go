// SPDX-License-Identifier: MIT
package block

import (
	"errors"
	"testing"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{0, "ok"},
		{InputOverflow, "input overflow"},
		{InputUnderflow | InputOverflow, "input underflow, input overflow"},
		{Status(1 << 8), "unknown(0x100)"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", uint32(tt.status), got, tt.want)
		}
	}
}

func TestFirstChannel(t *testing.T) {
	tests := []struct {
		name     string
		in       []float32
		channels int
		dstLen   int
		want     []float32
		wantErr  error
	}{
		{"Mono passthrough", []float32{1, 2, 3}, 1, 3, []float32{1, 2, 3}, nil},
		{"Stereo left", []float32{1, -1, 2, -2, 3, -3}, 2, 3, []float32{1, 2, 3}, nil},
		{"Short destination", []float32{1, -1, 2, -2, 3, -3}, 2, 2, []float32{1, 2}, nil},
		{"Ragged interleave", []float32{1, 2, 3}, 2, 2, nil, ErrChannelLayout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]float32, tt.dstLen)
			n, err := FirstChannel(dst, tt.in, tt.channels)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if n != len(tt.want) {
				t.Fatalf("n = %d, want %d", n, len(tt.want))
			}
			for i := range tt.want {
				if dst[i] != tt.want[i] {
					t.Errorf("dst[%d] = %v, want %v", i, dst[i], tt.want[i])
				}
			}
		})
	}
}

func TestFirstChannelZeroAllocs(t *testing.T) {
	in := make([]float32, 4096)
	dst := make([]float32, 2048)
	allocs := testing.AllocsPerRun(100, func() {
		_, _ = FirstChannel(dst, in, 2)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in FirstChannel, got %.1f", allocs)
	}
}

func TestNewBuffer(t *testing.T) {
	buf := NewBuffer(512, 2, 48000)
	if len(buf.Data) != 1024 {
		t.Errorf("len(Data) = %d, want 1024", len(buf.Data))
	}
	if buf.Format.NumChannels != 2 || buf.Format.SampleRate != 48000 {
		t.Errorf("Format = %+v", buf.Format)
	}
	if buf.NumFrames() != 512 {
		t.Errorf("NumFrames() = %d, want 512", buf.NumFrames())
	}
}
