// SPDX-License-Identifier: MIT
package capture

import (
	"fmt"
	"sync"
	"time"

	"pitchscope/internal/block"
	applog "pitchscope/internal/log"
	"pitchscope/pkg/utils"

	"github.com/go-audio/audio"
)

// ToneAmplitude is the peak level of the synthetic tone.
const ToneAmplitude = 0.8

// ToneSource produces a continuous sine in fixed-size blocks at the pace a
// device would, for running the monitor without a microphone.
type ToneSource struct {
	sampleRate float64
	frequency  float64
	interval   time.Duration

	handler block.Handler
	buf     *audio.Float32Buffer
	phase   float64 // Owned by whoever is emitting.

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewToneSource returns a source that emits frames-sample blocks of a
// frequency Hz sine every frames/sampleRate seconds.
func NewToneSource(sampleRate float64, frames int, frequency float64, handler block.Handler) (*ToneSource, error) {
	if sampleRate <= 0 || frames <= 0 {
		return nil, fmt.Errorf("tone source: invalid layout %d frames @ %v Hz", frames, sampleRate)
	}
	if frequency <= 0 || frequency >= sampleRate/2 {
		return nil, fmt.Errorf("tone source: frequency %v Hz outside (0, %v)", frequency, sampleRate/2)
	}
	return &ToneSource{
		sampleRate: sampleRate,
		frequency:  frequency,
		interval:   time.Duration(float64(frames) / sampleRate * float64(time.Second)),
		handler:    handler,
		buf:        block.NewBuffer(frames, 1, int(sampleRate)),
	}, nil
}

// Start begins emitting blocks on a ticker goroutine.
func (t *ToneSource) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		return fmt.Errorf("tone source already running")
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(t.stop, t.done)

	applog.Infof("Capture: synthetic tone %.2f Hz @ %.0f Hz, %d frames/block",
		t.frequency, t.sampleRate, len(t.buf.Data))
	return nil
}

// Stop halts the ticker and waits for the last block to be delivered.
func (t *ToneSource) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop == nil {
		return ErrNotStarted
	}
	close(t.stop)
	<-t.done
	t.stop, t.done = nil, nil
	return nil
}

// Emit synthesizes the next block and delivers it synchronously. The phase
// carries over, so consecutive blocks form one continuous tone.
func (t *ToneSource) Emit() {
	t.phase = utils.FillSine(t.buf.Data, t.sampleRate, t.frequency, ToneAmplitude, t.phase)
	t.handler(t.buf, 0)
}

func (t *ToneSource) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.Emit()
		}
	}
}
