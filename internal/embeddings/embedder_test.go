package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(384)
	a := e.Embed("hello world")
	b := e.Embed("hello world")
	require.Equal(t, a, b)
	assert.Len(t, a, 384)
}

func TestHashEmbedderDifferentTextsDiffer(t *testing.T) {
	e := NewHashEmbedder(384)
	a := e.Embed("hello world")
	b := e.Embed("goodbye world")
	assert.NotEqual(t, a, b)
}

func TestHashEmbedderEmptyTextAllowed(t *testing.T) {
	e := NewHashEmbedder(64)
	v := e.Embed("")
	assert.Len(t, v, 64)
}

func TestCosineClampedRange(t *testing.T) {
	a := Vector{1, 0, 0}
	b := Vector{1, 0, 0}
	assert.InDelta(t, 1.0, Cosine(a, b), 1e-9)

	c := Vector{-1, 0, 0}
	assert.InDelta(t, -1.0, Cosine(a, c), 1e-9)

	mismatched := Vector{1, 0}
	assert.Equal(t, -1.0, Cosine(a, mismatched))
}

func TestCachedEmbedderReturnsSameVectorOnHit(t *testing.T) {
	inner := NewHashEmbedder(32)
	cached, err := NewCachedEmbedder(inner, 100)
	require.NoError(t, err)

	first := cached.Embed("repeated text")
	second := cached.Embed("repeated text")
	assert.Equal(t, first, second)
}
