package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunkZeroInitializes(t *testing.T) {
	c, err := NewChunk(128, 2, 44100)
	require.NoError(t, err)
	assert.Len(t, c.Samples, 256)
	for _, s := range c.Samples {
		assert.Equal(t, float32(0), s)
	}
}

func TestNewChunkRejectsNonPositiveFrames(t *testing.T) {
	_, err := NewChunk(0, 2, 44100)
	assert.Error(t, err)
}

func TestCopyChunkPreservesMetadata(t *testing.T) {
	src, err := NewChunk(64, 1, 16000)
	require.NoError(t, err)
	src.SequenceNumber = 42
	src.SubmittedAt = 1000
	src.IsFinal = true
	for i := range src.Samples {
		src.Samples[i] = float32(i)
	}

	dst, err := NewChunk(64, 1, 16000)
	require.NoError(t, err)

	require.NoError(t, CopyChunk(src, dst))
	assert.Equal(t, src.Samples, dst.Samples)
	assert.Equal(t, uint64(42), dst.SequenceNumber)
	assert.Equal(t, int64(1000), dst.SubmittedAt)
	assert.True(t, dst.IsFinal)
}

func TestCopyChunkFailsWhenDestTooSmall(t *testing.T) {
	src, err := NewChunk(64, 1, 16000)
	require.NoError(t, err)
	dst, err := NewChunk(32, 1, 16000)
	require.NoError(t, err)

	err = CopyChunk(src, dst)
	assert.Error(t, err)
}

func TestArenaReusesBuffers(t *testing.T) {
	arena := NewArena(DefaultArenaConfig())
	c, err := CreateFromArena(arena, 32, 1, 16000)
	require.NoError(t, err)
	c.Samples[0] = 7
	c.Release()

	c2, err := CreateFromArena(arena, 32, 1, 16000)
	require.NoError(t, err)
	assert.Equal(t, float32(0), c2.Samples[0], "released buffers must be zeroed before reuse")
}
