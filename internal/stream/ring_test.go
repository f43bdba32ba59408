package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestChunk(t *testing.T, seq uint64) *Chunk {
	t.Helper()
	c, err := NewChunk(16, 1, 16000)
	require.NoError(t, err)
	c.SequenceNumber = seq
	return c
}

func TestRingTryPushFullRejects(t *testing.T) {
	r := NewRing(2)
	assert.Equal(t, PushOK, r.TryPush(newTestChunk(t, 1)))
	assert.Equal(t, PushOK, r.TryPush(newTestChunk(t, 2)))
	assert.Equal(t, PushFull, r.TryPush(newTestChunk(t, 3)))
	assert.Equal(t, 2, r.Level())
	assert.Equal(t, 0, r.Space())
}

func TestRingPopBlockingFIFOOrder(t *testing.T) {
	r := NewRing(4)
	r.TryPush(newTestChunk(t, 1))
	r.TryPush(newTestChunk(t, 2))

	c1, res := r.PopBlocking(time.Millisecond)
	require.Equal(t, PopOK, res)
	assert.Equal(t, uint64(1), c1.SequenceNumber)

	c2, res := r.PopBlocking(time.Millisecond)
	require.Equal(t, PopOK, res)
	assert.Equal(t, uint64(2), c2.SequenceNumber)
}

func TestRingPopBlockingTimesOutWhenEmpty(t *testing.T) {
	r := NewRing(2)
	_, res := r.PopBlocking(5 * time.Millisecond)
	assert.Equal(t, PopEmpty, res)
}

func TestRingPopBlockingWakesOnPush(t *testing.T) {
	r := NewRing(2)
	done := make(chan PopResult, 1)
	go func() {
		_, res := r.PopBlocking(time.Second)
		done <- res
	}()

	time.Sleep(10 * time.Millisecond)
	r.TryPush(newTestChunk(t, 5))

	select {
	case res := <-done:
		assert.Equal(t, PopOK, res)
	case <-time.After(time.Second):
		t.Fatal("pop did not wake on push")
	}
}

func TestRingStopWakesBlockedPop(t *testing.T) {
	r := NewRing(2)
	done := make(chan PopResult, 1)
	go func() {
		_, res := r.PopBlocking(time.Second)
		done <- res
	}()

	time.Sleep(10 * time.Millisecond)
	r.Stop()

	select {
	case res := <-done:
		assert.Equal(t, PopStopped, res)
	case <-time.After(time.Second):
		t.Fatal("pop did not wake on stop")
	}
}

func TestRingFlushReleasesAndResets(t *testing.T) {
	r := NewRing(4)
	r.TryPush(newTestChunk(t, 1))
	r.TryPush(newTestChunk(t, 2))
	r.Flush()
	assert.Equal(t, 0, r.Level())
	assert.Equal(t, 4, r.Space())
}

func TestRingResizeOnlyWhenEmpty(t *testing.T) {
	r := NewRing(4)
	r.TryPush(newTestChunk(t, 1))
	assert.Error(t, r.Resize(8))

	r.Flush()
	require.NoError(t, r.Resize(8))
	assert.Equal(t, 8, r.Space())
}

// TestRingLevelSpaceInvariantHolds exercises the §8 quantified invariant
// that, for any ring at any moment, 0 <= level <= capacity and
// space == capacity - level, across an interleaved sequence of pushes and
// pops.
func TestRingLevelSpaceInvariantHolds(t *testing.T) {
	const capacity = 5
	r := NewRing(capacity)
	seq := uint64(1)

	check := func() {
		level := r.Level()
		space := r.Space()
		assert.GreaterOrEqual(t, level, 0)
		assert.LessOrEqual(t, level, capacity)
		assert.Equal(t, capacity-level, space)
	}
	check()

	for i := 0; i < capacity+2; i++ {
		r.TryPush(newTestChunk(t, seq))
		seq++
		check()
	}
	for i := 0; i < capacity; i++ {
		r.PopBlocking(time.Millisecond)
		check()
	}
	for i := 0; i < 3; i++ {
		r.TryPush(newTestChunk(t, seq))
		seq++
		check()
		r.PopBlocking(time.Millisecond)
		check()
	}
}
