package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crlotwhite/libetude-sub011/internal/config"
	"github.com/crlotwhite/libetude-sub011/internal/errors"
	"github.com/crlotwhite/libetude-sub011/internal/events"
	"github.com/crlotwhite/libetude-sub011/internal/logging"
	"github.com/crlotwhite/libetude-sub011/internal/metrics"
)

// StreamContext owns the ring buffer and worker pool for one audio stream,
// implementing the state machine and operations of SPEC_FULL.md §4.3.
type StreamContext struct {
	id     string
	cfg    config.StreamConfig
	stage  Stage
	logger *slog.Logger
	sink   *events.Sink
	pmx    *metrics.PipelineMetrics

	mu            sync.Mutex
	pauseCond     *sync.Cond
	state         State
	stopRequested bool
	startTime     time.Time
	lastErrorCat  errors.Category
	lastErrorMsg  string

	ring    *Ring // input queue: PushAudio producers, workerLoop consumers
	outRing *Ring // output queue: workerLoop producers, PopChunk consumers
	arena   *Arena
	quality *QualityController
	stats   *Stats

	seq uint64 // atomic sequence number generator

	group    *errgroup.Group
	groupCtx context.Context
	cancel   context.CancelFunc
}

// Option configures optional StreamContext collaborators.
type Option func(*StreamContext)

// WithEventSink attaches an events.Sink used to publish state-change events.
func WithEventSink(sink *events.Sink) Option {
	return func(sc *StreamContext) { sc.sink = sink }
}

// WithMetrics attaches a PipelineMetrics collector.
func WithMetrics(pmx *metrics.PipelineMetrics) Option {
	return func(sc *StreamContext) { sc.pmx = pmx }
}

// WithLogger overrides the default component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(sc *StreamContext) { sc.logger = logger }
}

// NewStreamContext constructs a StreamContext in the Idle state.
func NewStreamContext(id string, cfg config.StreamConfig, stage Stage, opts ...Option) *StreamContext {
	if stage == nil {
		stage = PassThroughStage
	}
	sc := &StreamContext{
		id:      id,
		cfg:     cfg,
		stage:   stage,
		logger:  logging.ForComponent("stream"),
		state:   StateIdle,
		quality: NewQualityController(cfg.TargetLatency(), cfg.MaxLatency()),
		stats:   &Stats{CurrentQuality: 1.0},
		arena:   NewArena(DefaultArenaConfig()),
	}
	sc.pauseCond = sync.NewCond(&sc.mu)
	for _, opt := range opts {
		opt(sc)
	}
	sc.quality.SetEnabled(cfg.EnableQualityAdaptation)
	return sc
}

// transition moves the state machine to next, firing the state-change event
// before releasing the caller-held lock, per SPEC_FULL.md §4.3. Callers must
// hold sc.mu.
func (sc *StreamContext) transitionLocked(next State) error {
	if !canTransition(sc.state, next) {
		return errInvalidTransition(sc.state, next)
	}
	prev := sc.state
	sc.state = next
	if sc.sink != nil {
		sc.sink.Publish(events.Event{
			Kind:    events.KindStreamStateChanged,
			Subject: sc.id,
			Payload: map[string]string{"from": prev.String(), "to": next.String()},
		})
	}
	return nil
}

func (sc *StreamContext) enterError(cat errors.Category, msg string) {
	sc.mu.Lock()
	sc.lastErrorCat = cat
	sc.lastErrorMsg = msg
	_ = sc.transitionLocked(StateError)
	sc.mu.Unlock()
}

// GetState returns the current state.
func (sc *StreamContext) GetState() State {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.state
}

// GetStats returns a snapshot of the statistics block.
func (sc *StreamContext) GetStats() Snapshot {
	return sc.stats.Snapshot(time.Now())
}

// ResetStats zeroes every counter.
func (sc *StreamContext) ResetStats() {
	sc.stats.Reset()
}

// GetLatency returns now - last_produced_time as a time.Duration.
func (sc *StreamContext) GetLatency() time.Duration {
	return sc.stats.currentLatency(time.Now())
}

// Configure replaces the active StreamConfig. Legal only from Idle, since a
// running pipeline has already sized its ring and quality controller off
// the previous configuration.
func (sc *StreamContext) Configure(cfg config.StreamConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.state != StateIdle {
		return errors.Newf("configure illegal in state %s", sc.state).
			Component("stream").
			Category(errors.CategoryInvalidState).
			Build()
	}
	sc.cfg = cfg
	sc.quality = NewQualityController(cfg.TargetLatency(), cfg.MaxLatency())
	sc.quality.SetEnabled(cfg.EnableQualityAdaptation)
	if sc.ring != nil {
		if err := sc.ring.Resize(cfg.BufferCount); err != nil {
			return err
		}
	}
	if sc.outRing != nil {
		if err := sc.outRing.Resize(cfg.BufferCount); err != nil {
			return err
		}
	}
	return nil
}

// Start validates the configuration, constructs the ring and worker pool and
// begins draining it. Legal only from Idle.
func (sc *StreamContext) Start() error {
	sc.mu.Lock()
	if sc.state != StateIdle {
		defer sc.mu.Unlock()
		return errInvalidTransition(sc.state, StateInitializing)
	}
	if err := sc.cfg.Validate(); err != nil {
		sc.mu.Unlock()
		return err
	}
	if err := sc.transitionLocked(StateInitializing); err != nil {
		sc.mu.Unlock()
		return err
	}

	sc.stats.Reset()
	if sc.ring == nil {
		sc.ring = NewRing(sc.cfg.BufferCount)
	} else {
		sc.ring.Reset()
	}
	if sc.outRing == nil {
		sc.outRing = NewRing(sc.cfg.BufferCount)
	} else {
		sc.outRing.Reset()
	}
	sc.stopRequested = false
	sc.startTime = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)
	sc.groupCtx = groupCtx
	sc.cancel = cancel
	sc.group = group

	if err := sc.transitionLocked(StateBuffering); err != nil {
		sc.mu.Unlock()
		return err
	}
	sc.mu.Unlock()

	for i := 0; i < sc.cfg.ProcessingThreadCount; i++ {
		group.Go(sc.workerLoop)
	}
	return nil
}

// Stop requests shutdown, joins every worker and releases resources,
// returning the context to Idle.
func (sc *StreamContext) Stop() error {
	sc.mu.Lock()
	switch sc.state {
	case StateStreaming, StatePaused, StateBuffering:
		if err := sc.transitionLocked(StateStopping); err != nil {
			sc.mu.Unlock()
			return err
		}
	case StateIdle:
		sc.mu.Unlock()
		return nil
	default:
		err := errInvalidTransition(sc.state, StateStopping)
		sc.mu.Unlock()
		return err
	}
	sc.stopRequested = true
	sc.mu.Unlock()

	if sc.ring != nil {
		sc.ring.Stop()
	}
	if sc.outRing != nil {
		sc.outRing.Stop()
	}
	sc.pauseCond.Broadcast()
	if sc.cancel != nil {
		sc.cancel()
	}
	if sc.group != nil {
		_ = sc.group.Wait()
	}
	if sc.ring != nil {
		sc.ring.Flush()
	}
	if sc.outRing != nil {
		sc.outRing.Flush()
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.transitionLocked(StateIdle)
}

// Pause atomically flips to Paused without draining the ring.
func (sc *StreamContext) Pause() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if err := sc.transitionLocked(StatePaused); err != nil {
		return err
	}
	return nil
}

// Resume atomically flips back to Streaming and wakes any waiting workers.
func (sc *StreamContext) Resume() error {
	sc.mu.Lock()
	if err := sc.transitionLocked(StateStreaming); err != nil {
		sc.mu.Unlock()
		return err
	}
	sc.mu.Unlock()
	sc.pauseCond.Broadcast()
	return nil
}

// Restart is the semantic composition stop ∘ initialize ∘ start.
func (sc *StreamContext) Restart() error {
	if err := sc.Stop(); err != nil {
		return err
	}
	return sc.Start()
}

// PushAudio partitions buf (interleaved samples) into chunks of at most
// chunk_size frames, in submission order, and enqueues them. On the first
// full ring the call stops and returns BufferFull; chunks already pushed
// remain enqueued.
func (sc *StreamContext) PushAudio(buf []float32, channels int) error {
	sc.mu.Lock()
	state := sc.state
	sc.mu.Unlock()
	if state != StateStreaming && state != StateBuffering {
		return errors.Newf("push_audio illegal in state %s", state).
			Component("stream").
			Category(errors.CategoryInvalidState).
			Build()
	}
	if channels <= 0 {
		return errors.Newf("channel count must be positive, got %d", channels).
			Component("stream").
			Category(errors.CategoryInvalidArgument).
			Build()
	}

	totalFrames := len(buf) / channels
	chunkFrames := sc.cfg.ChunkSize

	for offset := 0; offset < totalFrames; offset += chunkFrames {
		n := chunkFrames
		if offset+n > totalFrames {
			n = totalFrames - offset
		}
		isFinal := offset+n >= totalFrames

		chunk, err := CreateFromArena(sc.arena, n, channels, sc.cfg.SampleRate)
		if err != nil {
			return err
		}
		copy(chunk.Samples, buf[offset*channels:(offset+n)*channels])
		chunk.SequenceNumber = atomic.AddUint64(&sc.seq, 1)
		chunk.SubmittedAt = nowNanos()
		chunk.IsFinal = isFinal

		switch sc.ring.TryPush(chunk) {
		case PushFull:
			chunk.Release()
			sc.stats.recordOverrun()
			if sc.pmx != nil {
				sc.pmx.RecordOverrun(sc.id)
			}
			return errors.Newf("ring buffer full for stream %s", sc.id).
				Component("stream").
				Category(errors.CategoryBufferFull).
				Build()
		}
	}
	sc.stats.setBufferLevel(sc.ring.Level(), sc.ring.HighWaterMark())
	if sc.pmx != nil {
		sc.pmx.SetRingLevel(sc.id, sc.ring.Level())
	}
	return nil
}

// PopChunk is a non-blocking pop used by consumers reading processed
// output; it returns BufferEmpty if none is ready.
func (sc *StreamContext) PopChunk() (*Chunk, error) {
	if sc.outRing == nil {
		return nil, errors.New(nil).
			Component("stream").
			Category(errors.CategoryBufferEmpty).
			Build()
	}
	chunk, result := sc.outRing.PopBlocking(0)
	if result != PopOK {
		return nil, errors.New(nil).
			Component("stream").
			Category(errors.CategoryBufferEmpty).
			Build()
	}
	return chunk, nil
}

// Flush releases all remaining chunks and resets ring indices. Legal only
// outside Streaming/Buffering, where workers may concurrently touch the
// ring.
func (sc *StreamContext) Flush() error {
	sc.mu.Lock()
	state := sc.state
	sc.mu.Unlock()
	if state == StateStreaming || state == StateBuffering {
		return errors.Newf("flush illegal in state %s", state).
			Component("stream").
			Category(errors.CategoryInvalidState).
			Build()
	}
	if sc.ring != nil {
		sc.ring.Flush()
	}
	if sc.outRing != nil {
		sc.outRing.Flush()
	}
	return nil
}

// ResizeBuffers changes ring capacity for both the input and output rings.
// Legal only in Idle.
func (sc *StreamContext) ResizeBuffers(newCapacity int) error {
	sc.mu.Lock()
	state := sc.state
	sc.mu.Unlock()
	if state != StateIdle {
		return errors.Newf("resize_buffers illegal in state %s", state).
			Component("stream").
			Category(errors.CategoryInvalidState).
			Build()
	}
	if sc.ring == nil {
		sc.ring = NewRing(newCapacity)
	} else if err := sc.ring.Resize(newCapacity); err != nil {
		return err
	}
	if sc.outRing == nil {
		sc.outRing = NewRing(newCapacity)
		return nil
	}
	return sc.outRing.Resize(newCapacity)
}

// SetQuality clips q to [0,1] and overrides the controller directly.
func (sc *StreamContext) SetQuality(q float64) {
	sc.quality.SetQuality(q)
}
