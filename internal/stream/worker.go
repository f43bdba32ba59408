package stream

import (
	"time"

	"github.com/crlotwhite/libetude-sub011/internal/errors"
)

// workerLoop implements the per-worker drain loop of SPEC_FULL.md §4.4. It
// is started once per configured processing thread via errgroup.Group.Go.
func (sc *StreamContext) workerLoop() error {
	for {
		sc.mu.Lock()
		for sc.state == StatePaused && !sc.stopRequested {
			sc.pauseCond.Wait()
		}
		stopRequested := sc.stopRequested
		sc.mu.Unlock()

		if stopRequested {
			return nil
		}

		chunk, result := sc.ring.PopBlocking(sc.cfg.BufferTimeout())
		if result == PopStopped {
			return nil
		}
		if result == PopEmpty {
			sc.stats.recordUnderrun()
			if sc.pmx != nil {
				sc.pmx.RecordUnderrun(sc.id)
			}
			continue
		}

		// A Pause that lands while this worker is blocked in PopBlocking
		// holds the popped chunk here until Resume (or Stop).
		sc.mu.Lock()
		for sc.state == StatePaused && !sc.stopRequested {
			sc.pauseCond.Wait()
		}
		sc.mu.Unlock()

		sc.maybeAdvanceToStreaming()

		start := time.Now()
		res := func() (res StageResult) {
			defer func() {
				if r := recover(); r != nil {
					res = StageResult{Err: errors.Newf("stage panicked: %v", r).
						Component("stream").
						Category(errors.CategoryPluginProcessFailed).
						Build()}
				}
			}()
			return sc.stage(sc.groupCtx, chunk, sc.quality.Quality())
		}()
		elapsed := time.Since(start)

		frames := chunk.FrameCount

		switch {
		case res.Err != nil:
			sc.stats.recordError()
			sc.stats.recordDropped()
			if sc.pmx != nil {
				sc.pmx.RecordDroppedChunk(sc.id)
			}
			chunk.Release()
		case res.Chunk != nil:
			if sc.outRing.TryPush(res.Chunk) == PushFull {
				sc.stats.recordDropped()
				if sc.pmx != nil {
					sc.pmx.RecordDroppedChunk(sc.id)
				}
				res.Chunk.Release()
			}
		default:
			chunk.Release()
		}

		now := time.Now()
		sc.stats.recordChunkProcessed(frames, elapsed, now)
		sc.stats.recordLatency(elapsed)
		if sc.pmx != nil {
			sc.pmx.RecordChunkProcessed(sc.id, frames)
			sc.pmx.ObserveLatency(sc.id, float64(elapsed.Milliseconds()))
			sc.pmx.SetRingLevel(sc.id, sc.ring.Level())
		}
		sc.stats.setBufferLevel(sc.ring.Level(), sc.ring.HighWaterMark())

		// Feed the controller this chunk's own processing duration, not
		// now-LastProducedAt: LastProducedAt was just set to now above, so
		// that difference is always zero and the overrun branch could never
		// fire.
		if changed, q := sc.quality.Tick(elapsed, now); changed {
			sc.stats.recordQualityAdaptation(q)
			if sc.pmx != nil {
				sc.pmx.SetQuality(sc.id, q)
			}
		}
	}
}

func (sc *StreamContext) maybeAdvanceToStreaming() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.state == StateBuffering {
		_ = sc.transitionLocked(StateStreaming)
	}
}
