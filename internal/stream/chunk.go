// Package stream implements the real-time streaming pipeline: chunks, the
// bounded ring buffer, the stream context state machine, the worker pool and
// the quality controller (SPEC_FULL.md §4.1-§4.5), grounded on the teacher's
// audiocore buffer and chunk-accumulation code.
package stream

import (
	"sync"
	"time"

	"github.com/crlotwhite/libetude-sub011/internal/errors"
)

// Chunk is one unit of audio handed between a producer, the ring buffer and
// a worker. A Chunk is owned by exactly one holder at a time.
type Chunk struct {
	Samples        []float32
	FrameCount     int
	ChannelCount   int
	SampleRate     int
	SequenceNumber uint64
	SubmittedAt    int64 // monotonic nanoseconds since the package epoch, see nowNanos
	IsFinal        bool

	arena *Arena
}

// NewChunk allocates a Chunk with a zero-initialized sample buffer of
// frames*channels floats.
func NewChunk(frames, channels, sampleRate int) (*Chunk, error) {
	if frames <= 0 {
		return nil, errors.Newf("frame_count must be positive, got %d", frames).
			Component("stream").
			Category(errors.CategoryInvalidArgument).
			Build()
	}
	return &Chunk{
		Samples:      make([]float32, frames*channels),
		FrameCount:   frames,
		ChannelCount: channels,
		SampleRate:   sampleRate,
	}, nil
}

// CreateFromArena allocates a Chunk using a's sample pool instead of a fresh
// slice, so that Release can return the buffer for reuse.
func CreateFromArena(arena *Arena, frames, channels, sampleRate int) (*Chunk, error) {
	if frames <= 0 {
		return nil, errors.Newf("frame_count must be positive, got %d", frames).
			Component("stream").
			Category(errors.CategoryInvalidArgument).
			Build()
	}
	samples := arena.get(frames * channels)
	return &Chunk{
		Samples:      samples,
		FrameCount:   frames,
		ChannelCount: channels,
		SampleRate:   sampleRate,
		arena:        arena,
	}, nil
}

// CopyChunk copies src's sample data and metadata into dst, including
// src's SequenceNumber, SubmittedAt and IsFinal. It fails with
// BufferTooSmall when dst holds fewer samples than src.
func CopyChunk(src, dst *Chunk) error {
	if len(dst.Samples) < len(src.Samples) {
		return errors.Newf("destination chunk holds %d samples, need %d", len(dst.Samples), len(src.Samples)).
			Component("stream").
			Category(errors.CategoryBufferTooSmall).
			Context("have", len(dst.Samples)).
			Context("want", len(src.Samples)).
			Build()
	}
	n := copy(dst.Samples, src.Samples)
	dst.Samples = dst.Samples[:n]
	dst.FrameCount = src.FrameCount
	dst.ChannelCount = src.ChannelCount
	dst.SampleRate = src.SampleRate
	dst.SequenceNumber = src.SequenceNumber
	dst.SubmittedAt = src.SubmittedAt
	dst.IsFinal = src.IsFinal
	return nil
}

// Release returns the chunk's sample buffer to its arena, if any. A chunk
// created without an arena is simply left for the garbage collector.
func (c *Chunk) Release() {
	if c == nil || c.arena == nil {
		return
	}
	c.arena.put(c.Samples)
	c.Samples = nil
	c.arena = nil
}

// Arena is a tiered sample-buffer pool, mirroring the teacher's tiered
// bufferPoolImpl but operating on []float32 slices instead of []byte.
type Arena struct {
	small, medium, large sync.Pool
	smallSize            int
	mediumSize           int
	largeSize            int
}

// ArenaConfig sizes the three pool tiers, in samples (not bytes).
type ArenaConfig struct {
	SmallSize  int
	MediumSize int
	LargeSize  int
}

// DefaultArenaConfig matches the default chunk sizes used by StreamConfig.
func DefaultArenaConfig() ArenaConfig {
	return ArenaConfig{SmallSize: 256, MediumSize: 2048, LargeSize: 16384}
}

// NewArena constructs an Arena with the given tier sizes.
func NewArena(cfg ArenaConfig) *Arena {
	a := &Arena{smallSize: cfg.SmallSize, mediumSize: cfg.MediumSize, largeSize: cfg.LargeSize}
	a.small.New = func() any { return make([]float32, cfg.SmallSize) }
	a.medium.New = func() any { return make([]float32, cfg.MediumSize) }
	a.large.New = func() any { return make([]float32, cfg.LargeSize) }
	return a
}

func (a *Arena) get(size int) []float32 {
	var buf []float32
	switch {
	case size <= a.smallSize:
		buf = a.small.Get().([]float32)
	case size <= a.mediumSize:
		buf = a.medium.Get().([]float32)
	case size <= a.largeSize:
		buf = a.large.Get().([]float32)
	default:
		return make([]float32, size)
	}
	return buf[:size]
}

func (a *Arena) put(buf []float32) {
	capacity := cap(buf)
	for i := range buf {
		buf[i] = 0
	}
	switch {
	case capacity <= a.smallSize:
		a.small.Put(buf[:capacity])
	case capacity <= a.mediumSize:
		a.medium.Put(buf[:capacity])
	case capacity <= a.largeSize:
		a.large.Put(buf[:capacity])
	default:
		// Oversized buffers are not pooled.
	}
}

// epoch is captured once at package initialization; nowNanos measures from it
// using the monotonic clock reading time.Since relies on.
var epoch = time.Now()

// nowNanos is the monotonic clock source used for SubmittedAt stamps.
func nowNanos() int64 {
	return time.Since(epoch).Nanoseconds()
}
