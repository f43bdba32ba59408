package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaults(t *testing.T) {
	err := New(nil).Build()
	assert.Equal(t, ComponentUnknown, err.Component)
	assert.Equal(t, CategoryGeneric, err.Category)
}

func TestBuilderFields(t *testing.T) {
	err := Newf("ring %s", "full").
		Component("stream").
		Category(CategoryBufferFull).
		Context("level", 8).
		Build()

	assert.Equal(t, "stream", err.Component)
	assert.Equal(t, CategoryBufferFull, err.Category)
	assert.Equal(t, 8, err.GetContext()["level"])
	assert.Contains(t, err.Error(), "ring full")
}

func TestIsCategory(t *testing.T) {
	err := New(NewStd("missing")).Category(CategoryNotFound).Build()
	assert.True(t, IsNotFound(err))
	assert.False(t, IsCategory(err, CategoryBufferFull))
}

func TestContextIsDefensiveCopy(t *testing.T) {
	err := New(nil).Context("a", 1).Build()
	ctx := err.GetContext()
	ctx["a"] = 2
	require.Equal(t, 1, err.GetContext()["a"])
}

func TestAsUnwrap(t *testing.T) {
	base := NewStd("boom")
	wrapped := New(base).Category(CategoryFileIO).Build()

	assert.True(t, Is(wrapped, base))

	var le *LibEtudeError
	require.True(t, As(wrapped, &le))
	assert.Equal(t, CategoryFileIO, le.Category)
}
