// Package errors provides the LibEtude error taxonomy as a fluent builder
// on top of the standard library errors package.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// Category classifies an error for callbacks, stats counters, and health checks.
type Category string

const (
	CategoryInvalidArgument     Category = "invalid-argument"
	CategoryInvalidState        Category = "invalid-state"
	CategoryBufferFull          Category = "buffer-full"
	CategoryBufferEmpty         Category = "buffer-empty"
	CategoryBufferTooSmall      Category = "buffer-too-small"
	CategoryOutOfMemory         Category = "out-of-memory"
	CategoryNotFound            Category = "not-found"
	CategoryCorruptedCache      Category = "corrupted-cache"
	CategoryVersionIncompatible Category = "version-incompatible"
	CategoryDependencyMissing   Category = "dependency-missing"
	CategoryDependencyCircular  Category = "dependency-circular"
	CategoryPluginInitFailed    Category = "plugin-init-failed"
	CategoryPluginProcessFailed Category = "plugin-process-failed"
	CategoryPluginUnloadFailed  Category = "plugin-unload-failed"
	CategoryThreadCreateFailed  Category = "thread-creation-failed"
	CategoryFileIO              Category = "file-io"
	CategoryNotImplemented      Category = "not-implemented"
	CategoryGeneric             Category = "generic"
)

// ComponentUnknown is used when no component was set explicitly.
const ComponentUnknown = "unknown"

// LibEtudeError wraps an error with component, category, and structured context.
type LibEtudeError struct {
	Err       error
	Component string
	Category  Category
	Context   map[string]any
	Timestamp time.Time

	mu sync.RWMutex
}

// Error implements the error interface.
func (e *LibEtudeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Component, e.Category)
	}
	return fmt.Sprintf("%s: %s: %s", e.Component, e.Category, e.Err.Error())
}

// Unwrap exposes the wrapped error to errors.Is/As.
func (e *LibEtudeError) Unwrap() error { return e.Err }

// Is reports category-equality when compared with another *LibEtudeError.
func (e *LibEtudeError) Is(target error) bool {
	var other *LibEtudeError
	if stderrors.As(target, &other) {
		return e.Category == other.Category
	}
	if e.Err == nil {
		return false
	}
	return stderrors.Is(e.Err, target)
}

// GetContext returns a defensive copy of the error's context map.
func (e *LibEtudeError) GetContext() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.Context == nil {
		return nil
	}
	cp := make(map[string]any, len(e.Context))
	maps.Copy(cp, e.Context)
	return cp
}

// Builder provides a fluent interface for constructing a LibEtudeError.
type Builder struct {
	err       error
	component string
	category  Category
	context   map[string]any
}

// New starts building an error around an existing error (may be nil).
func New(err error) *Builder {
	return &Builder{err: err}
}

// Newf builds a formatted error message and starts a Builder around it.
func Newf(format string, args ...any) *Builder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component that raised the error.
func (b *Builder) Component(component string) *Builder {
	b.component = component
	return b
}

// Category sets the error's taxonomy category.
func (b *Builder) Category(category Category) *Builder {
	b.category = category
	return b
}

// Context attaches a structured context key/value pair.
func (b *Builder) Context(key string, value any) *Builder {
	if b.context == nil {
		b.context = make(map[string]any)
	}
	b.context[key] = value
	return b
}

// Build finalizes the error.
func (b *Builder) Build() *LibEtudeError {
	component := b.component
	if component == "" {
		component = ComponentUnknown
	}
	category := b.category
	if category == "" {
		category = CategoryGeneric
	}
	return &LibEtudeError{
		Err:       b.err,
		Component: component,
		Category:  category,
		Context:   b.context,
		Timestamp: time.Now(),
	}
}

// IsCategory reports whether err is a *LibEtudeError tagged with category.
func IsCategory(err error, category Category) bool {
	var le *LibEtudeError
	return stderrors.As(err, &le) && le.Category == category
}

// IsNotFound is a convenience wrapper for the common NotFound check.
func IsNotFound(err error) bool { return IsCategory(err, CategoryNotFound) }

// Standard-library passthroughs so callers never need to import both packages.

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Unwrap returns the result of calling err's Unwrap method, if any.
func Unwrap(err error) error { return stderrors.Unwrap(err) }

// Join returns an error wrapping the given errors.
func Join(errs ...error) error { return stderrors.Join(errs...) }

// NewStd creates a plain standard-library error (drop-in for errors.New).
func NewStd(text string) error { return stderrors.New(text) }
