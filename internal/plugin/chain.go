package plugin

import (
	"context"
	"sync"

	"github.com/crlotwhite/libetude-sub011/internal/errors"
)

// ChainHandle is a stable arena index into a Chain, returned by Append and
// consumed by SetBypass. This mirrors the arena + stable index pattern
// graph.go uses for dependency nodes (SPEC_FULL.md §9's back-reference
// redesign note): a Chain never holds mutual ownership with the Registry
// records it sequences, only an index into its own slot arena.
type ChainHandle int

type chainSlot struct {
	record *Record
	bypass bool
}

// Chain is the ordered list of Active plugin records the pipeline stage
// consults (SPEC_FULL.md §4.9 "Chain" / §2's "stage function that may
// consult C9"). ChainProcess calls each non-bypassed entry's Process in
// order using a ping-pong pair of buffers so no entry's Process call reads
// and writes the same slice; a bypassed entry is skipped but keeps its slot
// so chain order is preserved.
type Chain struct {
	mu    sync.RWMutex
	slots []chainSlot
}

// NewChain constructs an empty Chain.
func NewChain() *Chain { return &Chain{} }

// Append adds rec to the end of the chain and returns its stable handle.
// rec must already be Active.
func (c *Chain) Append(rec *Record) (ChainHandle, error) {
	if rec.State() != Active {
		return -1, errors.Newf("chain entry %q must be Active, is %s", rec.Metadata.Name, rec.State()).
			Component("plugin").
			Category(errors.CategoryInvalidState).
			Build()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots = append(c.slots, chainSlot{record: rec})
	return ChainHandle(len(c.slots) - 1), nil
}

// SetBypass toggles whether handle's entry is skipped during ChainProcess,
// without changing its position in the chain.
func (c *Chain) SetBypass(handle ChainHandle, bypass bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if int(handle) < 0 || int(handle) >= len(c.slots) {
		return errors.Newf("invalid chain handle %d", handle).
			Component("plugin").
			Category(errors.CategoryInvalidArgument).
			Build()
	}
	c.slots[handle].bypass = bypass
	return nil
}

// Bypassed reports handle's current bypass flag.
func (c *Chain) Bypassed(handle ChainHandle) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if int(handle) < 0 || int(handle) >= len(c.slots) {
		return false, errors.Newf("invalid chain handle %d", handle).
			Component("plugin").
			Category(errors.CategoryInvalidArgument).
			Build()
	}
	return c.slots[handle].bypass, nil
}

// Len returns the number of entries currently in the chain, including
// bypassed ones.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.slots)
}

// ChainProcess runs in through every non-bypassed entry in chain order,
// ping-ponging between two buffers sized to len(in), and returns the final
// buffer. A chain with no active (non-bypassed) entries returns a copy of
// in unchanged.
func (c *Chain) ChainProcess(ctx context.Context, in []float32, frames int) ([]float32, error) {
	c.mu.RLock()
	slots := append([]chainSlot(nil), c.slots...)
	c.mu.RUnlock()

	bufs := [2][]float32{make([]float32, len(in)), make([]float32, len(in))}
	copy(bufs[0], in)
	current, next := 0, 1

	for _, slot := range slots {
		if slot.bypass {
			continue
		}
		if err := slot.record.Process(ctx, bufs[current], bufs[next], frames); err != nil {
			return nil, err
		}
		current, next = next, current
	}
	return bufs[current], nil
}
