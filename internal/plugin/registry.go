package plugin

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/crlotwhite/libetude-sub011/internal/errors"
	"github.com/crlotwhite/libetude-sub011/internal/events"
	"github.com/crlotwhite/libetude-sub011/internal/logging"
)

// dynamicLibrarySuffixes mirrors the platform suffixes a real loader would
// recognize; Scan treats them as the marker for a candidate plugin file.
var dynamicLibrarySuffixes = []string{".so", ".dylib", ".dll"}

// Registry holds loaded Plugin Records indexed by name and by UUID, both
// required to be unique (SPEC_FULL.md §3 Plugin Record invariants),
// mirroring the teacher's dual-key model registry pattern generalized from
// one index to two.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Record
	byUUID map[uuid.UUID]*Record

	searchPaths []string
	loadHook    LoadHook

	sink   *events.Sink
	logger *slog.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry(hook LoadHook, sink *events.Sink) *Registry {
	return &Registry{
		byName:   make(map[string]*Record),
		byUUID:   make(map[uuid.UUID]*Record),
		loadHook: hook,
		sink:     sink,
		logger:   logging.ForComponent("plugin"),
	}
}

// AddSearchPath appends a directory to the ordered list Scan walks.
func (reg *Registry) AddSearchPath(dir string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.searchPaths = append(reg.searchPaths, dir)
}

// Register adds rec to the registry, enforcing unique name and UUID.
func (reg *Registry) Register(rec *Record) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.byName[rec.Metadata.Name]; exists {
		return errors.Newf("plugin name %q already registered", rec.Metadata.Name).
			Component("plugin").
			Category(errors.CategoryInvalidArgument).
			Build()
	}
	if _, exists := reg.byUUID[rec.Metadata.UUID]; exists {
		return errors.Newf("plugin UUID %s already registered", rec.Metadata.UUID).
			Component("plugin").
			Category(errors.CategoryInvalidArgument).
			Build()
	}

	reg.byName[rec.Metadata.Name] = rec
	reg.byUUID[rec.Metadata.UUID] = rec

	if reg.sink != nil {
		reg.sink.Publish(events.Event{Kind: events.KindPluginAdded, Subject: rec.Metadata.Name})
	}
	return nil
}

// Unregister removes a record by name.
func (reg *Registry) Unregister(name string) {
	reg.mu.Lock()
	rec, ok := reg.byName[name]
	if ok {
		delete(reg.byName, name)
		delete(reg.byUUID, rec.Metadata.UUID)
	}
	reg.mu.Unlock()

	if ok && reg.sink != nil {
		reg.sink.Publish(events.Event{Kind: events.KindPluginRemoved, Subject: name})
	}
}

// FindByName returns the record registered under name, if any.
func (reg *Registry) FindByName(name string) (*Record, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	rec, ok := reg.byName[name]
	return rec, ok
}

// FindByUUID returns the record registered under id, if any.
func (reg *Registry) FindByUUID(id uuid.UUID) (*Record, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	rec, ok := reg.byUUID[id]
	return rec, ok
}

// All returns a snapshot of every registered record.
func (reg *Registry) All() []*Record {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*Record, 0, len(reg.byName))
	for _, rec := range reg.byName {
		out = append(out, rec)
	}
	return out
}

// Scan walks dir, invoking the load hook for each file whose extension
// matches a recognized dynamic-library suffix, then validates and
// registers the resulting record.
func (reg *Registry) Scan(dir string) error {
	reg.mu.RLock()
	hook := reg.loadHook
	reg.mu.RUnlock()
	if hook == nil {
		return errors.Newf("no load hook configured").
			Component("plugin").
			Category(errors.CategoryNotImplemented).
			Build()
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !hasDynamicLibrarySuffix(path) {
			return nil
		}

		module, meta, loadErr := hook(path)
		if loadErr != nil {
			reg.logger.Warn("plugin load hook failed", "path", path, "error", loadErr)
			return nil
		}
		if err := validateMetadata(meta); err != nil {
			reg.logger.Warn("plugin metadata invalid", "path", path, "error", err)
			return nil
		}

		rec := NewRecord(meta, nil)
		if err := rec.Load(module); err != nil {
			return err
		}
		return reg.Register(rec)
	})
}

func hasDynamicLibrarySuffix(path string) bool {
	for _, suffix := range dynamicLibrarySuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func validateMetadata(meta Metadata) error {
	if meta.Name == "" {
		return errors.Newf("plugin metadata missing name").
			Component("plugin").
			Category(errors.CategoryInvalidArgument).
			Build()
	}
	if meta.UUID == uuid.Nil {
		return errors.Newf("plugin metadata missing UUID").
			Component("plugin").
			Category(errors.CategoryInvalidArgument).
			Build()
	}
	return nil
}
