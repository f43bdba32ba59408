package libetude

import (
	"time"

	"github.com/crlotwhite/libetude-sub011/internal/config"
	"github.com/crlotwhite/libetude-sub011/internal/events"
	"github.com/crlotwhite/libetude-sub011/internal/plugin"
	"github.com/crlotwhite/libetude-sub011/internal/scheduler"
	"github.com/crlotwhite/libetude-sub011/internal/stream"
)

// Engine is the Stream API facade of SPEC_FULL.md §6.1, wiring one
// StreamContext together with the plugin subsystem and a background task
// scheduler, all sharing one Services bundle.
type Engine struct {
	services *Services

	stream    *stream.StreamContext
	scheduler *scheduler.Scheduler
}

// NewEngine constructs an Engine for streamID, wiring stage as the
// DSP/vocoder collaborator (§6.2) and numWorkers background scheduler
// workers for ancillary work such as cache writes.
func NewEngine(services *Services, streamID string, stage stream.Stage, numWorkers int) *Engine {
	sc := stream.NewStreamContext(
		streamID,
		services.Config.Stream,
		stage,
		stream.WithEventSink(services.Sink),
		stream.WithMetrics(services.Pipeline),
		stream.WithLogger(services.Logger),
	)
	return &Engine{
		services:  services,
		stream:    sc,
		scheduler: scheduler.NewScheduler(numWorkers),
	}
}

// Configure replaces the stream's active configuration. Legal only while
// Idle.
func (e *Engine) Configure(cfg config.StreamConfig) error { return e.stream.Configure(cfg) }

// Start begins the pipeline.
func (e *Engine) Start() error { return e.stream.Start() }

// Stop drains and tears down the pipeline.
func (e *Engine) Stop() error { return e.stream.Stop() }

// Pause freezes the pipeline without releasing resources.
func (e *Engine) Pause() error { return e.stream.Pause() }

// Resume continues a paused pipeline.
func (e *Engine) Resume() error { return e.stream.Resume() }

// Restart stops then starts the pipeline.
func (e *Engine) Restart() error { return e.stream.Restart() }

// PushAudio enqueues interleaved samples for processing.
func (e *Engine) PushAudio(samples []float32, channels int) error {
	return e.stream.PushAudio(samples, channels)
}

// PopChunk dequeues one processed chunk, non-blocking.
func (e *Engine) PopChunk() (*stream.Chunk, error) { return e.stream.PopChunk() }

// GetState returns the pipeline's current lifecycle state.
func (e *Engine) GetState() stream.State { return e.stream.GetState() }

// GetStats returns a snapshot of the pipeline's counters.
func (e *Engine) GetStats() stream.Snapshot { return e.stream.GetStats() }

// SetQuality overrides the quality scalar directly, bypassing adaptation.
func (e *Engine) SetQuality(q float64) { e.stream.SetQuality(q) }

// SetStateCallback registers a listener invoked on every state transition.
func (e *Engine) SetStateCallback(name string, cb func(events.Event) error) bool {
	return e.services.Sink.Register(events.ListenerFunc{FuncName: name, Func: cb})
}

// SubmitBackgroundTask schedules fn on the engine's priority scheduler,
// used for ancillary work (e.g. writing a resolution cache entry) that
// should not block the audio worker pool.
func (e *Engine) SubmitBackgroundTask(priority scheduler.Priority, deadline time.Time, fn scheduler.TaskFunc) scheduler.TaskID {
	return e.scheduler.Submit(priority, deadline, fn, nil)
}

// Close tears down the stream and background scheduler.
func (e *Engine) Close() error {
	err := e.stream.Stop()
	e.scheduler.Shutdown()
	return err
}

// AppendToChain appends rec (which must already be Active) to the engine's
// active effect chain and returns its stable handle, letting the §6.2 stage
// function consult it via stream.NewChainStage.
func (e *Engine) AppendToChain(rec *plugin.Record) (plugin.ChainHandle, error) {
	return e.services.Chain.Append(rec)
}

// SetChainBypass toggles whether handle's chain entry is skipped during
// processing without removing it from the chain.
func (e *Engine) SetChainBypass(handle plugin.ChainHandle, bypass bool) error {
	return e.services.Chain.SetBypass(handle, bypass)
}

// RegisterPlugin validates and registers rec with both the live registry
// and the dependency graph's candidate arena, then re-resolves and caches
// the subject's dependency results.
func (e *Engine) RegisterPlugin(rec *plugin.Record) error {
	if err := e.services.Registry.Register(rec); err != nil {
		return err
	}
	idx := e.services.Graph.Add(rec)
	results := e.services.Graph.Resolve(idx)
	if err := e.services.Cache.Store(rec.Metadata.Name, results); err != nil {
		e.services.Logger.Warn("failed to persist resolution cache entry", "plugin", rec.Metadata.Name, "error", err)
	}
	return nil
}

// UnregisterPlugin removes name from both the registry and the graph, and
// invalidates its resolution cache entry.
func (e *Engine) UnregisterPlugin(name string) {
	e.services.Registry.Unregister(name)
	e.services.Graph.Remove(name)
	if err := e.services.Cache.Invalidate(name); err != nil {
		e.services.Logger.Warn("failed to invalidate resolution cache entry", "plugin", name, "error", err)
	}
}

// ResolveAll runs the dependency resolver across every registered plugin.
func (e *Engine) ResolveAll() []plugin.ResolvedResult {
	return e.services.Graph.ResolveAll()
}

// CheckCircular reports whether any required-dependency cycle exists.
func (e *Engine) CheckCircular() bool { return e.services.Graph.CheckCircular() }

// LoadOrder returns the plugin names in a dependency-respecting load order.
func (e *Engine) LoadOrder() []string {
	indices := e.services.Graph.LoadOrder()
	names := make([]string, 0, len(indices))
	for _, idx := range indices {
		names = append(names, e.services.Graph.NodeName(idx))
	}
	return names
}

// Report aggregates registry and resolution diagnostics and publishes the
// corresponding events.
func (e *Engine) Report(vulnerableNames, outdatedNames []string) plugin.Report {
	results := e.services.Graph.ResolveAll()
	r := plugin.BuildReport(e.services.Registry, results, vulnerableNames, outdatedNames, time.Now())
	plugin.PublishResolution(e.services.Sink, r, vulnerableNames, outdatedNames)
	return r
}
