package stream

import (
	"math"
	"sync/atomic"
	"time"
)

// QualityController implements the periodic feedback loop of SPEC_FULL.md
// §4.5: it reads observed latency against target/max latency and nudges a
// quality scalar, clamped to [0, 1] and stored lock-free via atomic bit
// manipulation so workers can read it on every stage invocation.
type QualityController struct {
	bits    uint64 // math.Float64bits(quality)
	enabled atomic.Bool

	targetLatency time.Duration
	maxLatency    time.Duration

	lastAdaptedAt atomic.Int64 // unix nanos
}

// NewQualityController constructs a controller starting at full quality.
func NewQualityController(target, max time.Duration) *QualityController {
	qc := &QualityController{targetLatency: target, maxLatency: max}
	qc.enabled.Store(true)
	qc.store(1.0)
	return qc
}

func (qc *QualityController) store(q float64) {
	atomic.StoreUint64(&qc.bits, math.Float64bits(q))
}

// Quality returns the current quality scalar.
func (qc *QualityController) Quality() float64 {
	return math.Float64frombits(atomic.LoadUint64(&qc.bits))
}

// SetQuality clips to [0, 1] and overrides the scalar directly.
func (qc *QualityController) SetQuality(q float64) {
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}
	qc.store(q)
}

// SetEnabled toggles quality adaptation. Disabling freezes the scalar at
// its current value.
func (qc *QualityController) SetEnabled(enabled bool) {
	qc.enabled.Store(enabled)
}

// Enabled reports whether quality adaptation is active.
func (qc *QualityController) Enabled() bool {
	return qc.enabled.Load()
}

// Tick evaluates the adaptation rule at most once per second; it returns
// true when the scalar changed and an adaptation should be counted.
func (qc *QualityController) Tick(currentLatency time.Duration, now time.Time) (changed bool, newQuality float64) {
	if !qc.enabled.Load() {
		return false, qc.Quality()
	}

	last := qc.lastAdaptedAt.Load()
	nowNS := now.UnixNano()
	if last != 0 && nowNS-last < time.Second.Nanoseconds() {
		return false, qc.Quality()
	}

	q := qc.Quality()
	switch {
	case currentLatency > qc.maxLatency:
		q = math.Max(0.1, q-0.1)
	case currentLatency < qc.targetLatency:
		q = math.Min(1.0, q+0.05)
	default:
		return false, q
	}

	qc.store(q)
	qc.lastAdaptedAt.Store(nowNS)
	return true, q
}
