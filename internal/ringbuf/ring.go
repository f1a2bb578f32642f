// SPDX-License-Identifier: MIT
/*
Package ringbuf implements the rolling waveform store shared between the
processing worker (single writer) and the display (any number of readers).

Thread Safety:
- One mutex guards the sample array, the cursor and the fill count
- Readers always receive a copy, never a view into the ring
- Write and ReadLastInto do not allocate
*/
package ringbuf

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

var (
	ErrInvalidCapacity = errors.New("ring buffer capacity must be positive")
	ErrReadTooLong     = errors.New("requested read exceeds ring buffer capacity")
	ErrNegativeRead    = errors.New("requested read length is negative")
)

// RingBuffer holds the most recent Cap() samples written to it.
type RingBuffer struct {
	mu      sync.Mutex
	samples []float32
	cursor  int // Index overwritten by the next sample.
	filled  int // Samples ever written, saturating at capacity.
}

// New creates a ring holding exactly capacity samples, all zero.
func New(capacity int) (*RingBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &RingBuffer{samples: make([]float32, capacity)}, nil
}

// NewForDuration sizes the ring to hold seconds of audio at sampleRate,
// rounded to the nearest whole sample.
func NewForDuration(sampleRate, seconds float64) (*RingBuffer, error) {
	return New(int(math.Round(sampleRate * seconds)))
}

// Write appends samples in order. The result is identical to storing each
// sample at the cursor and advancing the cursor modulo capacity, so a block
// longer than the ring leaves only its tail behind.
func (r *RingBuffer) Write(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.samples)
	total := len(samples)

	// Everything but the last capacity samples would be overwritten within
	// this call anyway. Skip whole laps but keep the cursor where a
	// sample-by-sample write would have left it.
	if total > capacity {
		skipped := total - capacity
		r.cursor = (r.cursor + skipped) % capacity
		samples = samples[skipped:]
	}

	for len(samples) > 0 {
		n := copy(r.samples[r.cursor:], samples)
		samples = samples[n:]
		r.cursor = (r.cursor + n) % capacity
	}

	r.filled = min(r.filled+total, capacity)
}

// ReadLast returns a fresh chronological copy (oldest first) of the most
// recent min(k, Len()) samples.
func (r *RingBuffer) ReadLast(k int) ([]float32, error) {
	if err := r.checkRead(k); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]float32, min(k, r.filled))
	r.copyLast(out)
	return out, nil
}

// ReadLastInto fills dst with the most recent samples in chronological order
// and returns how many were written. Fewer than len(dst) samples are copied
// only while the ring has not yet been filled that far.
func (r *RingBuffer) ReadLastInto(dst []float32) (int, error) {
	if err := r.checkRead(len(dst)); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := min(len(dst), r.filled)
	r.copyLast(dst[:n])
	return n, nil
}

// copyLast copies the len(dst) samples preceding the cursor. Caller holds mu.
func (r *RingBuffer) copyLast(dst []float32) {
	k := len(dst)
	if k == 0 {
		return
	}
	capacity := len(r.samples)
	start := (r.cursor - k + capacity) % capacity
	if start+k <= capacity {
		copy(dst, r.samples[start:start+k])
		return
	}
	first := copy(dst, r.samples[start:])
	copy(dst[first:], r.samples[:k-first])
}

func (r *RingBuffer) checkRead(k int) error {
	if k < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeRead, k)
	}
	if k > len(r.samples) {
		return fmt.Errorf("%w: %d > %d", ErrReadTooLong, k, len(r.samples))
	}
	return nil
}

// Cap returns the fixed capacity in samples.
func (r *RingBuffer) Cap() int {
	return len(r.samples) // Immutable after creation.
}

// Len returns how many valid samples the ring holds, at most Cap().
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filled
}

// Cursor returns the index the next written sample will land on.
func (r *RingBuffer) Cursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}
