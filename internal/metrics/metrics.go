// Package metrics provides Prometheus collectors for the streaming pipeline
// and the plugin dependency resolver.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics instruments one StreamContext's lifetime.
type PipelineMetrics struct {
	chunksProcessed *prometheus.CounterVec
	framesProcessed *prometheus.CounterVec
	underruns       *prometheus.CounterVec
	overruns        *prometheus.CounterVec
	droppedChunks   *prometheus.CounterVec
	qualityGauge    *prometheus.GaugeVec
	ringLevel       *prometheus.GaugeVec
	latencyMS       *prometheus.HistogramVec
}

// NewPipelineMetrics registers the pipeline collectors on reg. Passing a
// fresh prometheus.Registry (as the teacher's tests do) keeps collectors
// isolated per StreamContext instance.
func NewPipelineMetrics(reg prometheus.Registerer) (*PipelineMetrics, error) {
	m := &PipelineMetrics{
		chunksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "libetude", Subsystem: "stream", Name: "chunks_processed_total",
			Help: "Total chunks successfully processed by a stream context.",
		}, []string{"stream_id"}),
		framesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "libetude", Subsystem: "stream", Name: "frames_processed_total",
			Help: "Total audio frames successfully processed.",
		}, []string{"stream_id"}),
		underruns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "libetude", Subsystem: "stream", Name: "buffer_underruns_total",
			Help: "Ring buffer pop timeouts observed by workers.",
		}, []string{"stream_id"}),
		overruns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "libetude", Subsystem: "stream", Name: "buffer_overruns_total",
			Help: "push_audio calls rejected because the ring was full.",
		}, []string{"stream_id"}),
		droppedChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "libetude", Subsystem: "stream", Name: "dropped_chunks_total",
			Help: "Chunks dropped after stage failure or because the output ring was full.",
		}, []string{"stream_id"}),
		qualityGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "libetude", Subsystem: "stream", Name: "quality_scalar",
			Help: "Current quality scalar in [0,1].",
		}, []string{"stream_id"}),
		ringLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "libetude", Subsystem: "stream", Name: "ring_level",
			Help: "Current ring buffer occupancy.",
		}, []string{"stream_id"}),
		latencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "libetude", Subsystem: "stream", Name: "latency_ms",
			Help:    "Observed per-chunk stage processing time in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"stream_id"}),
	}

	collectors := []prometheus.Collector{
		m.chunksProcessed, m.framesProcessed, m.underruns, m.overruns,
		m.droppedChunks, m.qualityGauge, m.ringLevel, m.latencyMS,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PipelineMetrics) RecordChunkProcessed(streamID string, frames int) {
	if m == nil {
		return
	}
	m.chunksProcessed.WithLabelValues(streamID).Inc()
	m.framesProcessed.WithLabelValues(streamID).Add(float64(frames))
}

func (m *PipelineMetrics) RecordUnderrun(streamID string) {
	if m == nil {
		return
	}
	m.underruns.WithLabelValues(streamID).Inc()
}

func (m *PipelineMetrics) RecordOverrun(streamID string) {
	if m == nil {
		return
	}
	m.overruns.WithLabelValues(streamID).Inc()
}

func (m *PipelineMetrics) RecordDroppedChunk(streamID string) {
	if m == nil {
		return
	}
	m.droppedChunks.WithLabelValues(streamID).Inc()
}

func (m *PipelineMetrics) SetQuality(streamID string, quality float64) {
	if m == nil {
		return
	}
	m.qualityGauge.WithLabelValues(streamID).Set(quality)
}

func (m *PipelineMetrics) SetRingLevel(streamID string, level int) {
	if m == nil {
		return
	}
	m.ringLevel.WithLabelValues(streamID).Set(float64(level))
}

func (m *PipelineMetrics) ObserveLatency(streamID string, ms float64) {
	if m == nil {
		return
	}
	m.latencyMS.WithLabelValues(streamID).Observe(ms)
}

// ResolverMetrics instruments the plugin dependency resolver.
type ResolverMetrics struct {
	resolutions *prometheus.CounterVec
	cacheHits   *prometheus.CounterVec
}

// NewResolverMetrics registers the resolver collectors on reg.
func NewResolverMetrics(reg prometheus.Registerer) (*ResolverMetrics, error) {
	m := &ResolverMetrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "libetude", Subsystem: "resolver", Name: "resolutions_total",
			Help: "Dependency edge resolutions by outcome status.",
		}, []string{"status"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "libetude", Subsystem: "resolver", Name: "cache_lookups_total",
			Help: "Resolution cache lookups by outcome.",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{m.resolutions, m.cacheHits} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *ResolverMetrics) RecordResolution(status string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(status).Inc()
}

func (m *ResolverMetrics) RecordCacheLookup(outcome string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(outcome).Inc()
}
