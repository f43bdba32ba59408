package plugin

import (
	"context"
	"sync"

	"github.com/crlotwhite/libetude-sub011/internal/errors"
)

// LifecycleState enumerates the Plugin Record states of SPEC_FULL.md §4.9.
type LifecycleState int

const (
	Unloaded LifecycleState = iota
	Loaded
	Initialized
	Active
	LifecycleError
)

func (s LifecycleState) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loaded:
		return "loaded"
	case Initialized:
		return "initialized"
	case Active:
		return "active"
	case LifecycleError:
		return "error"
	default:
		return "unknown"
	}
}

var lifecycleTransitions = map[LifecycleState]map[LifecycleState]bool{
	Unloaded:       {Loaded: true, LifecycleError: true},
	Loaded:         {Initialized: true, Unloaded: true, LifecycleError: true},
	Initialized:    {Active: true, Unloaded: true, LifecycleError: true},
	Active:         {Initialized: true, LifecycleError: true},
	LifecycleError: {Unloaded: true},
}

func canTransitionLifecycle(from, to LifecycleState) bool {
	if from == to {
		return false
	}
	allowed, ok := lifecycleTransitions[from]
	return ok && allowed[to]
}

// Record is a Plugin Record (C9): metadata, lifecycle state, the loaded
// Module handle, parameter state and declared dependencies.
type Record struct {
	Metadata     Metadata
	Dependencies []Dependency

	mu            sync.Mutex
	state         LifecycleState
	module        Module
	params        map[string]any
	paramSchema   map[string]struct{}
	lastErrorText string
}

// NewRecord constructs a Record in the Unloaded state.
func NewRecord(meta Metadata, deps []Dependency) *Record {
	return &Record{
		Metadata:     meta,
		Dependencies: deps,
		state:        Unloaded,
		params:       make(map[string]any),
		paramSchema:  make(map[string]struct{}),
	}
}

// State returns the current lifecycle state.
func (r *Record) State() LifecycleState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Record) transition(to LifecycleState) error {
	if !canTransitionLifecycle(r.state, to) {
		return errors.Newf("invalid plugin lifecycle transition %s -> %s for %q", r.state, to, r.Metadata.Name).
			Component("plugin").
			Category(errors.CategoryInvalidState).
			Build()
	}
	r.state = to
	return nil
}

func (r *Record) fail(cat errors.Category, msg string) error {
	r.mu.Lock()
	r.lastErrorText = msg
	_ = r.transition(LifecycleError)
	r.mu.Unlock()
	return errors.Newf("%s", msg).Component("plugin").Category(cat).Build()
}

// Load attaches module as the record's loaded handle.
func (r *Record) Load(module Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.transition(Loaded); err != nil {
		return err
	}
	r.module = module
	return nil
}

// Initialize calls the module's Initialize hook and registers the
// parameter schema keys supplied in config.
func (r *Record) Initialize(ctx context.Context, config map[string]any) error {
	r.mu.Lock()
	if err := r.transition(Initialized); err != nil {
		r.mu.Unlock()
		return err
	}
	module := r.module
	r.mu.Unlock()

	if err := module.Initialize(ctx, config); err != nil {
		return r.fail(errors.CategoryPluginInitFailed, err.Error())
	}

	r.mu.Lock()
	for k, v := range config {
		r.paramSchema[k] = struct{}{}
		r.params[k] = v
	}
	r.mu.Unlock()
	return nil
}

// Activate moves the record from Initialized to Active.
func (r *Record) Activate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transition(Active)
}

// Deactivate moves the record from Active back to Initialized.
func (r *Record) Deactivate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transition(Initialized)
}

// Process invokes the module's Process hook; the record must be Active.
func (r *Record) Process(ctx context.Context, in, out []float32, frames int) error {
	r.mu.Lock()
	if r.state != Active {
		r.mu.Unlock()
		return errors.Newf("process requires Active state, plugin %q is %s", r.Metadata.Name, r.state).
			Component("plugin").
			Category(errors.CategoryInvalidState).
			Build()
	}
	module := r.module
	r.mu.Unlock()

	if err := module.Process(ctx, in, out, frames); err != nil {
		return r.fail(errors.CategoryPluginProcessFailed, err.Error())
	}
	return nil
}

// Finalize calls the module's Finalize hook and moves to Unloaded.
func (r *Record) Finalize(ctx context.Context) error {
	r.mu.Lock()
	if err := r.transition(Unloaded); err != nil {
		r.mu.Unlock()
		return err
	}
	module := r.module
	r.mu.Unlock()

	if module == nil {
		return nil
	}
	if err := module.Finalize(ctx); err != nil {
		return r.fail(errors.CategoryPluginUnloadFailed, err.Error())
	}
	return nil
}

// Unload discards the module handle without finalizing it, used when a
// record was loaded but never initialized.
func (r *Record) Unload() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.transition(Unloaded); err != nil {
		return err
	}
	r.module = nil
	return nil
}

// SetParameter is legal in Initialized and Active states.
func (r *Record) SetParameter(name string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Initialized && r.state != Active {
		return errors.Newf("set_parameter illegal in state %s", r.state).
			Component("plugin").
			Category(errors.CategoryInvalidState).
			Build()
	}
	if err := r.module.SetParameter(name, value); err != nil {
		return err
	}
	r.paramSchema[name] = struct{}{}
	r.params[name] = value
	return nil
}

// GetParameter is legal in Initialized and Active states.
func (r *Record) GetParameter(name string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Initialized && r.state != Active {
		return nil, errors.Newf("get_parameter illegal in state %s", r.state).
			Component("plugin").
			Category(errors.CategoryInvalidState).
			Build()
	}
	return r.module.GetParameter(name)
}

// LastErrorText returns the message recorded by the most recent failure,
// if any.
func (r *Record) LastErrorText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErrorText
}
