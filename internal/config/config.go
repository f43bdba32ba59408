// Package config loads and validates the stream and dependency configuration
// described in SPEC_FULL.md §6.5, using viper for YAML file loading the way
// the teacher's conf package does.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/crlotwhite/libetude-sub011/internal/errors"
)

// Mode selects the stream's operating mode.
type Mode string

const (
	ModeRealtime Mode = "realtime"
	ModeBuffered Mode = "buffered"
	ModeAdaptive Mode = "adaptive"
)

// VersionPolicy controls how the dependency resolver picks a best match.
type VersionPolicy string

const (
	PolicyStrict        VersionPolicy = "strict"
	PolicyCompatible     VersionPolicy = "compatible"
	PolicyLatest         VersionPolicy = "latest"
	PolicyLatestStable   VersionPolicy = "latest_stable"
)

// StreamConfig holds the stream configuration options enumerated in
// SPEC_FULL.md §6.5.
type StreamConfig struct {
	Mode Mode `mapstructure:"mode"`

	ChunkSize    int `mapstructure:"chunk_size"`
	BufferCount  int `mapstructure:"buffer_count"`
	SampleRate   int `mapstructure:"sample_rate"`
	ChannelCount int `mapstructure:"channel_count"`

	TargetLatencyMS int `mapstructure:"target_latency_ms"`
	MaxLatencyMS    int `mapstructure:"max_latency_ms"`

	EnableQualityAdaptation bool    `mapstructure:"enable_quality_adaptation"`
	QualityThreshold        float64 `mapstructure:"quality_threshold"`

	MinBufferSize    int `mapstructure:"min_buffer_size"`
	MaxBufferSize    int `mapstructure:"max_buffer_size"`
	BufferTimeoutMS  int `mapstructure:"buffer_timeout_ms"`

	ProcessingThreadCount int  `mapstructure:"processing_thread_count"`
	EnableThreadAffinity  bool `mapstructure:"enable_thread_affinity"`
}

// DefaultStreamConfig returns a config that already passes Validate.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Mode:                    ModeAdaptive,
		ChunkSize:               256,
		BufferCount:             8,
		SampleRate:              44100,
		ChannelCount:            1,
		TargetLatencyMS:         10,
		MaxLatencyMS:            50,
		EnableQualityAdaptation: true,
		QualityThreshold:        0.5,
		MinBufferSize:           64,
		MaxBufferSize:           4096,
		BufferTimeoutMS:         100,
		ProcessingThreadCount:   2,
	}
}

// BufferTimeout returns BufferTimeoutMS as a time.Duration.
func (c StreamConfig) BufferTimeout() time.Duration {
	return time.Duration(c.BufferTimeoutMS) * time.Millisecond
}

// TargetLatency returns TargetLatencyMS as a time.Duration.
func (c StreamConfig) TargetLatency() time.Duration {
	return time.Duration(c.TargetLatencyMS) * time.Millisecond
}

// MaxLatency returns MaxLatencyMS as a time.Duration.
func (c StreamConfig) MaxLatency() time.Duration {
	return time.Duration(c.MaxLatencyMS) * time.Millisecond
}

// Validate enforces the validation rules of SPEC_FULL.md §6.5.
func (c StreamConfig) Validate() error {
	fail := func(field string, value any) error {
		return errors.Newf("invalid stream configuration field %q", field).
			Component("config").
			Category(errors.CategoryInvalidArgument).
			Context("field", field).
			Context("value", value).
			Build()
	}

	switch c.Mode {
	case ModeRealtime, ModeBuffered, ModeAdaptive:
	default:
		return fail("mode", c.Mode)
	}
	if c.ChunkSize <= 0 || c.ChunkSize > 8192 {
		return fail("chunk_size", c.ChunkSize)
	}
	if c.BufferCount <= 0 || c.BufferCount > 64 {
		return fail("buffer_count", c.BufferCount)
	}
	if c.SampleRate <= 0 || c.SampleRate > 192000 {
		return fail("sample_rate", c.SampleRate)
	}
	if c.ChannelCount <= 0 || c.ChannelCount > 8 {
		return fail("channel_count", c.ChannelCount)
	}
	if c.TargetLatencyMS <= 0 || c.TargetLatencyMS > 1000 {
		return fail("target_latency_ms", c.TargetLatencyMS)
	}
	if c.MaxLatencyMS <= c.TargetLatencyMS {
		return fail("max_latency_ms", c.MaxLatencyMS)
	}
	if c.MinBufferSize >= c.MaxBufferSize {
		return fail("min_buffer_size", c.MinBufferSize)
	}
	if c.ProcessingThreadCount <= 0 || c.ProcessingThreadCount > 16 {
		return fail("processing_thread_count", c.ProcessingThreadCount)
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 1 {
		return fail("quality_threshold", c.QualityThreshold)
	}
	return nil
}

// DependencyConfig holds the dependency-resolver configuration options
// enumerated in SPEC_FULL.md §6.5.
type DependencyConfig struct {
	VersionPolicy     VersionPolicy `mapstructure:"version_policy"`
	AllowPrerelease   bool          `mapstructure:"allow_prerelease"`
	AutoUpdate        bool          `mapstructure:"auto_update"`
	RequireSignature  bool          `mapstructure:"require_signature"`
	MaxDependencyDepth int          `mapstructure:"max_dependency_depth"`
	TrustedSources    []string      `mapstructure:"trusted_sources"`
}

// DefaultDependencyConfig returns a config that already passes Validate.
func DefaultDependencyConfig() DependencyConfig {
	return DependencyConfig{
		VersionPolicy:      PolicyCompatible,
		MaxDependencyDepth: 32,
	}
}

// Validate enforces the dependency-configuration invariants.
func (c DependencyConfig) Validate() error {
	switch c.VersionPolicy {
	case PolicyStrict, PolicyCompatible, PolicyLatest, PolicyLatestStable:
	default:
		return errors.Newf("invalid version policy %q", c.VersionPolicy).
			Component("config").
			Category(errors.CategoryInvalidArgument).
			Build()
	}
	if c.MaxDependencyDepth <= 0 {
		return errors.Newf("max_dependency_depth must be positive, got %d", c.MaxDependencyDepth).
			Component("config").
			Category(errors.CategoryInvalidArgument).
			Build()
	}
	return nil
}

// Bundle is everything loaded from a single configuration file.
type Bundle struct {
	Stream     StreamConfig      `mapstructure:"stream"`
	Dependency DependencyConfig  `mapstructure:"dependency"`
}

// Load reads a YAML configuration file at path and validates both sections.
// An empty path loads only the built-in defaults.
func Load(path string) (Bundle, error) {
	bundle := Bundle{
		Stream:     DefaultStreamConfig(),
		Dependency: DefaultDependencyConfig(),
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, bundle)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Bundle{}, errors.New(err).
				Component("config").
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
	}

	if err := v.Unmarshal(&bundle); err != nil {
		return Bundle{}, errors.New(err).
			Component("config").
			Category(errors.CategoryInvalidArgument).
			Build()
	}

	if err := bundle.Stream.Validate(); err != nil {
		return Bundle{}, err
	}
	if err := bundle.Dependency.Validate(); err != nil {
		return Bundle{}, err
	}
	return bundle, nil
}

func setDefaults(v *viper.Viper, bundle Bundle) {
	v.SetDefault("stream.mode", bundle.Stream.Mode)
	v.SetDefault("stream.chunk_size", bundle.Stream.ChunkSize)
	v.SetDefault("stream.buffer_count", bundle.Stream.BufferCount)
	v.SetDefault("stream.sample_rate", bundle.Stream.SampleRate)
	v.SetDefault("stream.channel_count", bundle.Stream.ChannelCount)
	v.SetDefault("stream.target_latency_ms", bundle.Stream.TargetLatencyMS)
	v.SetDefault("stream.max_latency_ms", bundle.Stream.MaxLatencyMS)
	v.SetDefault("stream.enable_quality_adaptation", bundle.Stream.EnableQualityAdaptation)
	v.SetDefault("stream.quality_threshold", bundle.Stream.QualityThreshold)
	v.SetDefault("stream.min_buffer_size", bundle.Stream.MinBufferSize)
	v.SetDefault("stream.max_buffer_size", bundle.Stream.MaxBufferSize)
	v.SetDefault("stream.buffer_timeout_ms", bundle.Stream.BufferTimeoutMS)
	v.SetDefault("stream.processing_thread_count", bundle.Stream.ProcessingThreadCount)
	v.SetDefault("stream.enable_thread_affinity", bundle.Stream.EnableThreadAffinity)

	v.SetDefault("dependency.version_policy", bundle.Dependency.VersionPolicy)
	v.SetDefault("dependency.allow_prerelease", bundle.Dependency.AllowPrerelease)
	v.SetDefault("dependency.auto_update", bundle.Dependency.AutoUpdate)
	v.SetDefault("dependency.require_signature", bundle.Dependency.RequireSignature)
	v.SetDefault("dependency.max_dependency_depth", bundle.Dependency.MaxDependencyDepth)
	v.SetDefault("dependency.trusted_sources", bundle.Dependency.TrustedSources)
}
