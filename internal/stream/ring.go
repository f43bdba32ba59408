package stream

import (
	"sync"
	"time"

	"github.com/crlotwhite/libetude-sub011/internal/errors"
)

// PushResult is the outcome of a Ring.TryPush call.
type PushResult int

const (
	PushOK PushResult = iota
	PushFull
)

// PopResult is the outcome of a Ring.PopBlocking call.
type PopResult int

const (
	PopOK PopResult = iota
	PopEmpty
	PopStopped
)

// Ring is a bounded FIFO of *Chunk with condition-wait on not-empty and
// not-full, grounded on the teacher's mutex-guarded chunk accumulation but
// reworked into a true circular buffer of fixed capacity as required by
// the ring buffer invariants.
type Ring struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	slots []*Chunk
	read  int
	write int
	count int

	stopped bool

	highWater int
}

// NewRing constructs a Ring with the given fixed capacity.
func NewRing(capacity int) *Ring {
	r := &Ring{slots: make([]*Chunk, capacity)}
	r.notEmpty = sync.NewCond(&r.mu)
	r.notFull = sync.NewCond(&r.mu)
	return r
}

// TryPush attempts to enqueue a chunk without blocking. It returns PushFull
// if the ring is at capacity; the caller retains ownership of the chunk in
// that case.
func (r *Ring) TryPush(c *Chunk) PushResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == len(r.slots) {
		return PushFull
	}
	r.slots[r.write] = c
	r.write = (r.write + 1) % len(r.slots)
	r.count++
	if r.count > r.highWater {
		r.highWater = r.count
	}
	r.notEmpty.Signal()
	return PushOK
}

// PopBlocking waits up to timeout for a chunk to become available. A zero
// or negative timeout polls once without waiting.
func (r *Ring) PopBlocking(timeout time.Duration) (*Chunk, PopResult) {
	deadline := time.Now().Add(timeout)

	r.mu.Lock()
	defer r.mu.Unlock()

	for r.count == 0 && !r.stopped {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, PopEmpty
		}
		waitCh := make(chan struct{})
		timer := time.AfterFunc(remaining, func() {
			r.mu.Lock()
			r.notEmpty.Broadcast()
			r.mu.Unlock()
			close(waitCh)
		})
		r.notEmpty.Wait()
		timer.Stop()
		select {
		case <-waitCh:
		default:
		}
	}

	if r.stopped && r.count == 0 {
		return nil, PopStopped
	}

	c := r.slots[r.read]
	r.slots[r.read] = nil
	r.read = (r.read + 1) % len(r.slots)
	r.count--
	r.notFull.Signal()
	return c, PopOK
}

// Stop wakes any blocked PopBlocking callers, which then observe PopStopped
// once the ring has drained. It does not itself drain the ring.
func (r *Ring) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.notEmpty.Broadcast()
	r.notFull.Broadcast()
}

// Reset clears the stopped flag so the ring can be reused after restart.
func (r *Ring) Reset() {
	r.mu.Lock()
	r.stopped = false
	r.mu.Unlock()
}

// Flush releases all remaining chunks and resets indices. Callers must
// ensure no worker concurrently holds the ring (SPEC_FULL.md §5 discipline).
func (r *Ring) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		if r.slots[i] != nil {
			r.slots[i].Release()
			r.slots[i] = nil
		}
	}
	r.read = 0
	r.write = 0
	r.count = 0
	r.notFull.Broadcast()
}

// Level returns the current occupancy.
func (r *Ring) Level() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Space returns the number of free slots.
func (r *Ring) Space() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots) - r.count
}

// HighWaterMark returns the largest occupancy observed since creation or
// the last Resize; Flush does not reset it.
func (r *Ring) HighWaterMark() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.highWater
}

// Resize changes capacity. It is only legal while the ring is empty, per
// the Stream Context invariant that capacity is mutable only in Idle.
func (r *Ring) Resize(newCapacity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count != 0 {
		return errors.New(nil).
			Component("stream").
			Category(errors.CategoryInvalidState).
			Context("operation", "ring_resize").
			Context("count", r.count).
			Build()
	}
	r.slots = make([]*Chunk, newCapacity)
	r.read = 0
	r.write = 0
	r.highWater = 0
	return nil
}
