// Package libetude wires the stream pipeline, plugin subsystem, and their
// ambient collaborators (logging, events, metrics, configuration) into a
// single Services bundle and an Engine facade, replacing the process-wide
// globals a C library would expose with explicit dependency injection.
package libetude

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/crlotwhite/libetude-sub011/internal/config"
	"github.com/crlotwhite/libetude-sub011/internal/errors"
	"github.com/crlotwhite/libetude-sub011/internal/events"
	"github.com/crlotwhite/libetude-sub011/internal/logging"
	"github.com/crlotwhite/libetude-sub011/internal/metrics"
	"github.com/crlotwhite/libetude-sub011/internal/plugin"
)

// Services bundles every collaborator a StreamContext or plugin Registry
// needs, constructed once per process and passed explicitly rather than
// reached for through package-level state.
type Services struct {
	Config    config.Bundle
	Logger    *slog.Logger
	Sink      *events.Sink
	Pipeline  *metrics.PipelineMetrics
	Resolver  *metrics.ResolverMetrics
	Cache     *plugin.Cache
	Registry  *plugin.Registry
	Graph     *plugin.Graph
	Chain     *plugin.Chain
}

// NewServices loads configuration from configPath (empty for defaults),
// starts the event sink, registers the Prometheus collectors on a private
// registry, and wires up the plugin registry and dependency graph.
func NewServices(configPath, cacheDir string, loadHook plugin.LoadHook) (*Services, error) {
	bundle, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	pmx, err := metrics.NewPipelineMetrics(reg)
	if err != nil {
		return nil, errors.New(err).Component("libetude").Category(errors.CategoryGeneric).Build()
	}
	rmx, err := metrics.NewResolverMetrics(reg)
	if err != nil {
		return nil, errors.New(err).Component("libetude").Category(errors.CategoryGeneric).Build()
	}

	cache, err := plugin.NewCache(cacheDir)
	if err != nil {
		return nil, err
	}
	cache.SetMetrics(rmx)

	graph := plugin.NewGraph(bundle.Dependency)
	graph.SetMetrics(rmx)

	sink := events.NewSink(events.DefaultConfig())

	return &Services{
		Config:   bundle,
		Logger:   logging.ForComponent("libetude"),
		Sink:     sink,
		Pipeline: pmx,
		Resolver: rmx,
		Cache:    cache,
		Registry: plugin.NewRegistry(loadHook, sink),
		Graph:    graph,
		Chain:    plugin.NewChain(),
	}, nil
}

// Close releases background resources owned by the bundle.
func (s *Services) Close() {
	if s.Sink != nil {
		s.Sink.Close()
	}
}
