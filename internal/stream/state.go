package stream

import "github.com/crlotwhite/libetude-sub011/internal/errors"

// State enumerates the Stream Context lifecycle states of SPEC_FULL.md §4.3.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateBuffering
	StateStreaming
	StatePaused
	StateStopping
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateBuffering:
		return "buffering"
	case StateStreaming:
		return "streaming"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// validTransitions encodes the table in SPEC_FULL.md §4.3: Idle→Initializing
// →Idle, Idle→Buffering→Streaming↔Paused, {Streaming|Paused|Buffering}
// →Stopping→Idle, any→Error. It also allows Initializing→Buffering (the path
// Start takes) and Error→Idle.
var validTransitions = map[State]map[State]bool{
	StateIdle:         {StateInitializing: true, StateBuffering: true, StateError: true},
	StateInitializing: {StateIdle: true, StateBuffering: true, StateError: true},
	StateBuffering:    {StateStreaming: true, StateStopping: true, StateError: true},
	StateStreaming:    {StatePaused: true, StateStopping: true, StateError: true},
	StatePaused:       {StateStreaming: true, StateStopping: true, StateError: true},
	StateStopping:     {StateIdle: true, StateError: true},
	StateError:        {StateIdle: true},
}

func canTransition(from, to State) bool {
	if from == to {
		return false
	}
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return allowed[to]
}

func errInvalidTransition(from, to State) error {
	return errors.Newf("invalid state transition %s -> %s", from, to).
		Component("stream").
		Category(errors.CategoryInvalidState).
		Context("from", from.String()).
		Context("to", to.String()).
		Build()
}
