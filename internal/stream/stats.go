package stream

import (
	"sync"
	"time"
)

// Stats is the statistics block maintained by a StreamContext, per
// SPEC_FULL.md §4.3. Counters are monotone non-decreasing except where
// explicitly reset.
type Stats struct {
	mu sync.Mutex

	ChunksProcessed    uint64
	FramesProcessed    uint64
	ProcessingTimeNS   uint64
	BufferLevel        int
	BufferHighWater    int
	Underruns          uint64
	Overruns           uint64
	Errors             uint64
	DroppedChunks      uint64
	QualityAdaptations uint64

	CurrentQuality float64
	averageQuality float64
	qualitySamples uint64

	LastProducedAt time.Time

	maxLatency time.Duration
	sumLatency time.Duration
	latencyN   uint64
}

// Snapshot is an immutable copy of Stats safe to read without the lock.
type Snapshot struct {
	ChunksProcessed    uint64
	FramesProcessed    uint64
	ProcessingTimeNS   uint64
	BufferLevel        int
	BufferHighWater    int
	Underruns          uint64
	Overruns           uint64
	Errors             uint64
	DroppedChunks      uint64
	QualityAdaptations uint64
	CurrentQuality     float64
	AverageQuality     float64
	CurrentLatencyMS   float64
	MaxLatencyMS       float64
	AverageLatencyMS   float64
}

func (s *Stats) recordChunkProcessed(frames int, processingTime time.Duration, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ChunksProcessed++
	s.FramesProcessed += uint64(frames)
	s.ProcessingTimeNS += uint64(processingTime.Nanoseconds())
	s.LastProducedAt = now
}

func (s *Stats) recordUnderrun() {
	s.mu.Lock()
	s.Underruns++
	s.mu.Unlock()
}

func (s *Stats) recordOverrun() {
	s.mu.Lock()
	s.Overruns++
	s.mu.Unlock()
}

func (s *Stats) recordError() {
	s.mu.Lock()
	s.Errors++
	s.mu.Unlock()
}

func (s *Stats) recordDropped() {
	s.mu.Lock()
	s.DroppedChunks++
	s.mu.Unlock()
}

func (s *Stats) recordQualityAdaptation(q float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.QualityAdaptations++
	s.CurrentQuality = q
	s.qualitySamples++
	s.averageQuality += (q - s.averageQuality) / float64(s.qualitySamples)
}

func (s *Stats) setBufferLevel(level, highWater int) {
	s.mu.Lock()
	s.BufferLevel = level
	if highWater > s.BufferHighWater {
		s.BufferHighWater = highWater
	}
	s.mu.Unlock()
}

func (s *Stats) recordLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > s.maxLatency {
		s.maxLatency = d
	}
	s.sumLatency += d
	s.latencyN++
}

// currentLatency returns now - LastProducedAt, the metric reported by
// StreamContext.GetLatency. The quality controller is fed each chunk's stage
// processing time instead (see workerLoop).
func (s *Stats) currentLatency(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LastProducedAt.IsZero() {
		return 0
	}
	return now.Sub(s.LastProducedAt)
}

// Snapshot returns a point-in-time copy of all counters.
func (s *Stats) Snapshot(now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var avgLatencyMS float64
	if s.latencyN > 0 {
		avgLatencyMS = float64(s.sumLatency.Milliseconds()) / float64(s.latencyN)
	}
	var currentLatencyMS float64
	if !s.LastProducedAt.IsZero() {
		currentLatencyMS = float64(now.Sub(s.LastProducedAt).Milliseconds())
	}

	return Snapshot{
		ChunksProcessed:    s.ChunksProcessed,
		FramesProcessed:    s.FramesProcessed,
		ProcessingTimeNS:   s.ProcessingTimeNS,
		BufferLevel:        s.BufferLevel,
		BufferHighWater:    s.BufferHighWater,
		Underruns:          s.Underruns,
		Overruns:           s.Overruns,
		Errors:             s.Errors,
		DroppedChunks:      s.DroppedChunks,
		QualityAdaptations: s.QualityAdaptations,
		CurrentQuality:     s.CurrentQuality,
		AverageQuality:     s.averageQuality,
		CurrentLatencyMS:   currentLatencyMS,
		MaxLatencyMS:       float64(s.maxLatency.Milliseconds()),
		AverageLatencyMS:   avgLatencyMS,
	}
}

// Reset zeroes every counter, per the explicit reset_stats operation. The
// current quality scalar is preserved since it is not a counter.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ChunksProcessed = 0
	s.FramesProcessed = 0
	s.ProcessingTimeNS = 0
	s.BufferLevel = 0
	s.BufferHighWater = 0
	s.Underruns = 0
	s.Overruns = 0
	s.Errors = 0
	s.DroppedChunks = 0
	s.QualityAdaptations = 0
	s.averageQuality = 0
	s.qualitySamples = 0
	s.LastProducedAt = time.Time{}
	s.maxLatency = 0
	s.sumLatency = 0
	s.latencyN = 0
}
