// Package plugin implements the dependency graph, plugin registry and
// lifecycle, and resolution cache of SPEC_FULL.md §4.8-§4.10, grounded on
// the teacher's interface-first audiocore design and its map-based model
// registry, generalized to two index keys.
package plugin

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/crlotwhite/libetude-sub011/internal/semver"
)

// Kind enumerates plugin categories. The spec leaves this open; libEtude
// distinguishes effect chains from generator stages.
type Kind string

const (
	KindEffect    Kind = "effect"
	KindGenerator Kind = "generator"
	KindAnalyzer  Kind = "analyzer"
)

// Metadata is the block carried by every plugin's dynamic library, per
// SPEC_FULL.md §6.3.
type Metadata struct {
	Name        string
	Description string
	Author      string
	Vendor      string
	Version     semver.Version
	APIVersion  semver.Version
	Kind        Kind
	UUID        uuid.UUID
	Checksum    string
}

// Dependency is one outgoing edge a plugin declares on another by name.
type Dependency struct {
	TargetName string
	Range      semver.Range
	Required   bool
}

// Module is the Go-native plugin ABI (§6.3), replacing cross-host dynamic
// library loading + C ABI, which is out of scope for this module.
type Module interface {
	Initialize(ctx context.Context, config map[string]any) error
	Process(ctx context.Context, in, out []float32, frames int) error
	Finalize(ctx context.Context) error

	SetParameter(name string, value any) error
	GetParameter(name string) (any, error)
	Reset() error
	Suspend() error
	Resume() error

	GetInfo(key string) string
	GetLatency() time.Duration
	GetTailTime() time.Duration
}

// LoadHook constructs a Module and its Metadata from a discovered plugin
// artifact path. Scan invokes the configured hook for every matching file.
type LoadHook func(path string) (Module, Metadata, error)
