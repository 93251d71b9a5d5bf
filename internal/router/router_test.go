package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-run/mnemo/internal/memory"
)

func TestRouteExtractsQueryKeysAndSearchTypes(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	out := r.Route("Do you remember the meeting with Alice yesterday about ProjectX?")
	assert.NotEmpty(t, out.QueryKeys)
	for _, k := range out.QueryKeys {
		assert.GreaterOrEqual(t, len([]rune(k)), 2)
	}
	assert.Contains(t, out.SearchTypes, memory.Episodic)
}

func TestRouteProceduralHint(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	out := r.Route("How to configure the deployment pipeline")
	assert.Contains(t, out.SearchTypes, memory.Procedural)
}

func TestRouteSemanticHint(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	out := r.Route("What is the meaning of this metric?")
	assert.Contains(t, out.SearchTypes, memory.Semantic)
}

func TestRouteDefaultsWhenNoHintsMatch(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	out := r.Route("The quarterly numbers look fine.")
	assert.Equal(t, []memory.Type{memory.Episodic, memory.Semantic}, out.SearchTypes)
}

func TestRouteValenceSign(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	pos := r.Route("I love this new feature, it's great and wonderful")
	neg := r.Route("I hate this bug, it's terrible and awful")
	assert.Greater(t, pos.EmotionalValence, 0.0)
	assert.Less(t, neg.EmotionalValence, 0.0)
}

func TestRouteIsCached(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	first := r.Route("Meeting notes about ProjectX with Dr Smith")
	second := r.Route("Meeting notes about ProjectX with Dr Smith")
	assert.Equal(t, first, second)
}
