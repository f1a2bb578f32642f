// SPDX-License-Identifier: MIT
package ringbuf

import (
	"errors"
	"sync"
	"testing"
)

// ramp returns [start, start+1, ..., start+n-1] as float32.
func ramp(start, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(start + i)
	}
	return out
}

// reference replays writes one sample at a time, the behaviour Write must match.
type reference struct {
	samples []float32
	cursor  int
	filled  int
}

func (r *reference) write(block []float32) {
	for _, s := range block {
		r.samples[r.cursor] = s
		r.cursor = (r.cursor + 1) % len(r.samples)
		if r.filled < len(r.samples) {
			r.filled++
		}
	}
}

func (r *reference) last(k int) []float32 {
	k = min(k, r.filled)
	out := make([]float32, k)
	for i := range k {
		idx := (r.cursor - k + i + len(r.samples)) % len(r.samples)
		out[i] = r.samples[idx]
	}
	return out
}

func equal(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	t.Parallel()
	for _, capacity := range []int{0, -1} {
		if _, err := New(capacity); !errors.Is(err, ErrInvalidCapacity) {
			t.Errorf("New(%d) error = %v, want ErrInvalidCapacity", capacity, err)
		}
	}
}

func TestNewForDurationRounds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		rate, seconds float64
		want          int
	}{
		{44100, 2.0, 88200},
		{44100, 0.1, 4410},
		{1000, 0.0015, 2}, // 1.5 rounds away from zero
		{1000, 0.0014, 1},
	}
	for _, tt := range tests {
		rb, err := NewForDuration(tt.rate, tt.seconds)
		if err != nil {
			t.Fatalf("NewForDuration(%v, %v): %v", tt.rate, tt.seconds, err)
		}
		if rb.Cap() != tt.want {
			t.Errorf("NewForDuration(%v, %v).Cap() = %d, want %d", tt.rate, tt.seconds, rb.Cap(), tt.want)
		}
	}
}

func TestWriteMatchesSequentialWrites(t *testing.T) {
	t.Parallel()
	const capacity = 10
	tests := []struct {
		name   string
		blocks []int // block lengths written in order
	}{
		{"Single short block", []int{3}},
		{"Exact fill", []int{10}},
		{"Wrap across end", []int{7, 6}},
		{"Many small blocks", []int{3, 3, 3, 3, 3}},
		{"Longer than capacity", []int{25}},
		{"Long block after offset", []int{4, 23}},
		{"Exact multiple of capacity", []int{3, 30}},
		{"Empty block", []int{5, 0, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb, _ := New(capacity)
			ref := &reference{samples: make([]float32, capacity)}
			next := 1
			for _, n := range tt.blocks {
				block := ramp(next, n)
				next += n
				rb.Write(block)
				ref.write(block)
			}

			if rb.Cursor() != ref.cursor {
				t.Errorf("Cursor() = %d, want %d", rb.Cursor(), ref.cursor)
			}
			if rb.Len() != ref.filled {
				t.Errorf("Len() = %d, want %d", rb.Len(), ref.filled)
			}
			for k := 0; k <= capacity; k++ {
				got, err := rb.ReadLast(k)
				if err != nil {
					t.Fatalf("ReadLast(%d): %v", k, err)
				}
				if want := ref.last(k); !equal(got, want) {
					t.Errorf("ReadLast(%d) = %v, want %v", k, got, want)
				}
			}
		})
	}
}

func TestWriteLargerThanCapacityKeepsTail(t *testing.T) {
	t.Parallel()
	rb, _ := New(8)
	block := ramp(100, 21)
	rb.Write(block)

	got, err := rb.ReadLast(8)
	if err != nil {
		t.Fatal(err)
	}
	if want := block[len(block)-8:]; !equal(got, want) {
		t.Errorf("ReadLast(8) = %v, want %v", got, want)
	}
	if rb.Cursor() != 21%8 {
		t.Errorf("Cursor() = %d, want %d", rb.Cursor(), 21%8)
	}
}

func TestReadLastBeforeFillReturnsWrittenOnly(t *testing.T) {
	t.Parallel()
	rb, _ := New(16)
	rb.Write([]float32{0.1, 0.2, 0.3})

	got, err := rb.ReadLast(10)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float32{0.1, 0.2, 0.3}; !equal(got, want) {
		t.Errorf("ReadLast(10) = %v, want %v", got, want)
	}
}

func TestReadLastErrors(t *testing.T) {
	t.Parallel()
	rb, _ := New(4)
	if _, err := rb.ReadLast(5); !errors.Is(err, ErrReadTooLong) {
		t.Errorf("ReadLast(5) error = %v, want ErrReadTooLong", err)
	}
	if _, err := rb.ReadLast(-1); !errors.Is(err, ErrNegativeRead) {
		t.Errorf("ReadLast(-1) error = %v, want ErrNegativeRead", err)
	}
	if _, err := rb.ReadLastInto(make([]float32, 5)); !errors.Is(err, ErrReadTooLong) {
		t.Errorf("ReadLastInto(len 5) error = %v, want ErrReadTooLong", err)
	}
}

func TestReadLastReturnsCopy(t *testing.T) {
	t.Parallel()
	rb, _ := New(4)
	rb.Write([]float32{1, 2, 3, 4})

	got, _ := rb.ReadLast(4)
	got[0] = 99

	again, _ := rb.ReadLast(4)
	if again[0] != 1 {
		t.Errorf("ReadLast exposed internal storage: got %v", again)
	}
}

func TestReadLastIntoMatchesReadLast(t *testing.T) {
	t.Parallel()
	rb, _ := New(32)
	rb.Write(ramp(0, 45))

	dst := make([]float32, 12)
	n, err := rb.ReadLastInto(dst)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := rb.ReadLast(12)
	if n != 12 || !equal(dst[:n], want) {
		t.Errorf("ReadLastInto = %v (n=%d), want %v", dst[:n], n, want)
	}
}

func TestWriteAndReadIntoZeroAllocs(t *testing.T) {
	rb, _ := New(4096)
	block := ramp(0, 2048)
	dst := make([]float32, 1024)

	allocs := testing.AllocsPerRun(100, func() {
		rb.Write(block)
		_, _ = rb.ReadLastInto(dst)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Write/ReadLastInto, got %.1f", allocs)
	}
}

// TestConcurrentWriteReadNoTornBlocks writes blocks whose samples all carry
// the block number. Because a write is atomic with respect to reads, any
// snapshot must be a run of non-decreasing block numbers drawn from values
// that were actually written.
func TestConcurrentWriteReadNoTornBlocks(t *testing.T) {
	t.Parallel()
	const (
		capacity  = 512
		blockSize = 96
		blocks    = 2000
		readers   = 4
	)
	rb, _ := New(capacity)

	var wg sync.WaitGroup
	done := make(chan struct{})

	errs := make(chan string, readers)
	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap, err := rb.ReadLast(capacity)
				if err != nil {
					errs <- err.Error()
					return
				}
				for i, v := range snap {
					if v < 1 || v > blocks || v != float32(int(v)) {
						errs <- "observed value never written"
						return
					}
					if i > 0 && v < snap[i-1] {
						errs <- "snapshot out of chronological order"
						return
					}
				}
				// The newest sample always completes a whole block.
				if n := len(snap); n >= blockSize {
					last := snap[n-1]
					for _, v := range snap[n-blockSize:] {
						if v != last {
							errs <- "torn block at snapshot tail"
							return
						}
					}
				}
			}
		}()
	}

	block := make([]float32, blockSize)
	for b := 1; b <= blocks; b++ {
		for i := range block {
			block[i] = float32(b)
		}
		rb.Write(block)
	}
	close(done)
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
}

func BenchmarkWrite(b *testing.B) {
	rb, _ := New(88200)
	block := ramp(0, 2048)
	b.ReportAllocs()
	for b.Loop() {
		rb.Write(block)
	}
}
