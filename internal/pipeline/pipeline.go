// SPDX-License-Identifier: MIT
/*
Package pipeline owns the processing side of the pitch monitor: it accepts
blocks from the capture callback, processes them one at a time on a single
worker goroutine and publishes the results for the display to poll.

Thread Safety:
- OnBlock never waits on the worker and never allocates; it copies into a pooled block
- A nil error from OnBlock means the block will be processed, even if Stop follows
- Blocks are processed strictly in arrival order by one worker
- The latest estimate is a single atomic word
- The waveform ring is guarded by its own mutex

Backpressure:
The queue and the block pool have the same fixed size. When every pooled
block is waiting in the queue the producer is outrunning the worker, and the
incoming block is rejected (ErrQueueFull) and counted. Accepted blocks are
never dropped or reordered.
*/
package pipeline

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"pitchscope/internal/analysis"
	"pitchscope/internal/block"
	applog "pitchscope/internal/log"
	"pitchscope/internal/note"
	"pitchscope/internal/ringbuf"

	"github.com/go-audio/audio"
	"github.com/google/uuid"
)

// DefaultQueueSize holds about three seconds of 2048-sample blocks at 44.1 kHz.
const DefaultQueueSize = 64

var (
	ErrBlockLength = errors.New("block length does not match configured block size")
	ErrQueueFull   = errors.New("processing queue full, block rejected")
	ErrStopped     = errors.New("pipeline stopped")
)

// Options fixes the pipeline configuration at construction.
type Options struct {
	BlockSize     int
	SampleRate    float64
	BufferSeconds float64
	QueueSize     int
	Window        analysis.WindowFunc
	Calibration   analysis.Calibration
	GateThreshold float64 // Peak level in [0, 1]; 0 leaves the gate disabled.
}

// Pitch is the published estimate together with its note.
type Pitch struct {
	Hz   float64
	Note note.Note
}

// Stats is a point-in-time view of the pipeline counters.
type Stats struct {
	SessionID string
	Processed uint64 // Blocks that produced an estimate.
	Failed    uint64 // Blocks the estimator rejected.
	Dropped   uint64 // Blocks rejected because the queue was full.
	Rejected  uint64 // Blocks rejected for a wrong length.
	Flagged   uint64 // Blocks delivered with a capture status warning.
	Queued    int    // Blocks waiting for the worker.
}

type queuedBlock struct {
	samples []float32
	status  block.Status
}

// Pipeline coordinates the ring buffer, the estimator and the latest estimate.
type Pipeline struct {
	opts      Options
	sessionID uuid.UUID

	ring      *ringbuf.RingBuffer
	estimator analysis.Estimator

	queue chan *queuedBlock // nil is the stop sentinel.
	free  chan *queuedBlock

	latest atomic.Uint64 // math.Float64bits of the latest Hz.

	gateEnabled   atomic.Bool
	gateThreshold atomic.Uint64 // math.Float64bits of the peak threshold.

	processed atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
	rejected  atomic.Uint64
	flagged   atomic.Uint64

	reportedDrops uint64 // Worker-owned.
	statusLog     *applog.Limiter
	dropLog       *applog.Limiter

	lifecycle sync.Mutex
	started   bool
	stopped   atomic.Bool
	enqueue   sync.RWMutex // Held for reading across an OnBlock hand-off; Stop takes it to close the queue.
	stopOnce  sync.Once
	done      chan struct{}
}

// New builds a pipeline with a Hann/FFT pitch estimator sized from opts.
func New(opts Options) (*Pipeline, error) {
	est, err := analysis.NewPitchEstimator(opts.BlockSize, opts.SampleRate, opts.Window, opts.Calibration)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return newWithEstimator(opts, est)
}

func newWithEstimator(opts Options, est analysis.Estimator) (*Pipeline, error) {
	if opts.BlockSize <= 0 {
		return nil, fmt.Errorf("pipeline: block size must be positive, got %d", opts.BlockSize)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	ring, err := ringbuf.NewForDuration(opts.SampleRate, opts.BufferSeconds)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	p := &Pipeline{
		opts:      opts,
		sessionID: uuid.New(),
		ring:      ring,
		estimator: est,
		// One extra slot so the stop sentinel always fits behind a full pool.
		queue:     make(chan *queuedBlock, opts.QueueSize+1),
		free:      make(chan *queuedBlock, opts.QueueSize),
		statusLog: applog.NewLimiter(time.Second),
		dropLog:   applog.NewLimiter(time.Second),
		done:      make(chan struct{}),
	}
	for range opts.QueueSize {
		p.free <- &queuedBlock{samples: make([]float32, opts.BlockSize)}
	}
	if opts.GateThreshold > 0 {
		p.SetGateThreshold(opts.GateThreshold)
		p.EnableGate()
	}

	applog.Infof("Pipeline: session %s (Block: %d, Queue: %d, Ring: %d samples)",
		p.sessionID, opts.BlockSize, opts.QueueSize, ring.Cap())
	return p, nil
}

// Start launches the worker. Calling Start more than once is a no-op.
func (p *Pipeline) Start() {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if p.started {
		applog.Warnf("Pipeline: Start called but already running.")
		return
	}
	if p.stopped.Load() {
		applog.Warnf("Pipeline: Start called after Stop, ignoring.")
		return
	}
	p.started = true
	go p.run()
}

// Stop refuses further blocks, lets the worker finish every block queued
// before it and waits for the worker to exit. Safe to call repeatedly.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.lifecycle.Lock()
		defer p.lifecycle.Unlock()

		// No OnBlock is mid hand-off while the write lock is held, so every
		// accepted block is queued ahead of the sentinel.
		p.enqueue.Lock()
		p.stopped.Store(true)
		if !p.started {
			p.enqueue.Unlock()
			close(p.done)
			return
		}
		applog.Infof("Pipeline: Draining %d queued blocks before stopping.", len(p.queue))
		p.queue <- nil
		p.enqueue.Unlock()
		<-p.done
		s := p.Stats()
		applog.Infof("Pipeline: Stopped (processed %d, dropped %d, flagged %d).", s.Processed, s.Dropped, s.Flagged)
	})
}

// Done is closed once the worker has exited.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// OnBlock hands one captured block to the worker. It is called from the
// capture callback: it copies samples into a pooled block and returns
// immediately. The caller may reuse samples as soon as OnBlock returns.
func (p *Pipeline) OnBlock(samples []float32, status block.Status) error {
	p.enqueue.RLock()
	defer p.enqueue.RUnlock()

	if p.stopped.Load() {
		return ErrStopped
	}
	if len(samples) != p.opts.BlockSize {
		p.rejected.Add(1)
		return ErrBlockLength
	}

	var b *queuedBlock
	select {
	case b = <-p.free:
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}

	copy(b.samples, samples)
	b.status = status
	p.queue <- b // Never blocks: the queue has room for every pooled block.
	return nil
}

// Handle adapts OnBlock to block.Handler for capture sources. Errors are
// already counted in Stats, so they are not reported again here.
func (p *Pipeline) Handle(buf *audio.Float32Buffer, status block.Status) {
	if buf == nil {
		return
	}
	if buf.Format != nil && buf.Format.NumChannels > 1 {
		p.rejected.Add(1)
		return
	}
	_ = p.OnBlock(buf.Data, status)
}

func (p *Pipeline) run() {
	defer close(p.done)
	applog.Debugf("Pipeline: worker started")

	for b := range p.queue {
		if b == nil {
			applog.Debugf("Pipeline: worker received stop signal")
			return
		}
		p.process(b)
		p.free <- b
	}
}

func (p *Pipeline) process(b *queuedBlock) {
	if b.status != 0 {
		p.flagged.Add(1)
		if p.statusLog.Allow() {
			applog.Warnf("Pipeline: capture reported %v, processing block anyway", b.status)
		}
	}
	if drops := p.dropped.Load(); drops != p.reportedDrops && p.dropLog.Allow() {
		applog.Warnf("Pipeline: %d blocks rejected, queue full (worker is falling behind)", drops-p.reportedDrops)
		p.reportedDrops = drops
	}

	p.ring.Write(b.samples)

	hz, err := p.estimator.Estimate(b.samples)
	if err != nil {
		p.failed.Add(1)
		applog.Errorf("Pipeline: estimate failed: %v", err)
		return
	}
	if p.gateEnabled.Load() && peakLevel(b.samples) < p.GetGateThreshold() {
		hz = 0
	}

	p.latest.Store(math.Float64bits(hz))
	p.processed.Add(1)
}

// CurrentPitch returns the most recently published estimate. It never blocks.
func (p *Pipeline) CurrentPitch() Pitch {
	hz := math.Float64frombits(p.latest.Load())
	return Pitch{Hz: hz, Note: note.FromFrequency(hz)}
}

// SnapshotWaveform returns the latest k samples in chronological order.
func (p *Pipeline) SnapshotWaveform(k int) ([]float32, error) {
	return p.ring.ReadLast(k)
}

// SnapshotWaveformInto is the allocation-free form of SnapshotWaveform.
func (p *Pipeline) SnapshotWaveformInto(dst []float32) (int, error) {
	return p.ring.ReadLastInto(dst)
}

// Stats returns the current counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		SessionID: p.sessionID.String(),
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
		Rejected:  p.rejected.Load(),
		Flagged:   p.flagged.Load(),
		Queued:    len(p.queue),
	}
}

// Options returns the configuration the pipeline was built with.
func (p *Pipeline) Options() Options {
	return p.opts
}

// RingCapacity returns the waveform ring size in samples.
func (p *Pipeline) RingCapacity() int {
	return p.ring.Cap()
}
