package compaction

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-run/mnemo/internal/embeddings"
	"github.com/mnemo-run/mnemo/internal/logging"
	"github.com/mnemo-run/mnemo/internal/memory"
	"github.com/mnemo-run/mnemo/internal/router"
	"github.com/mnemo-run/mnemo/internal/storage"
)

func seedAged(t *testing.T, s *storage.Store, ageDays float64, weight float64) *memory.Memory {
	t.Helper()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	m := &memory.Memory{
		ID:           uuid.NewString(),
		Content:      "This is the first sentence. This is the second sentence. This is the third. This is the fourth sentence which should be dropped.",
		Embedding:    embeddings.Vector{0.1, 0.2, 0.3, 0.4},
		MemoryType:   memory.Semantic,
		Source:       memory.SourceConversation,
		Tier:         memory.Warm,
		Compression:  memory.Full,
		Weight:       weight,
		CreatedAt:    now.Add(-time.Duration(ageDays*24) * time.Hour),
		LastAccessed: now,
	}
	require.NoError(t, s.Insert(m))
	return m
}

func newTestCompactor(t *testing.T) (*Compactor, *storage.Store) {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "data"), 4, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	lx, err := router.LoadLexicon()
	require.NoError(t, err)

	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return New(s, lx, func() time.Time { return fixed }), s
}

func TestCompactSkipsHighWeight(t *testing.T) {
	c, s := newTestCompactor(t)
	m := seedAged(t, s, 40, 0.9)

	res, err := c.Compact(memory.Warm, Config{MinWeightToPreserve: 0.7, SummaryAgeDays: 30, KeywordsAgeDays: 90})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SkippedHighWeight)
	assert.Equal(t, 0, res.Compacted)

	got, _, _ := s.Get(m.ID)
	assert.Equal(t, memory.Full, got.Compression)
}

func TestCompactSummarizesAgedContent(t *testing.T) {
	c, s := newTestCompactor(t)
	m := seedAged(t, s, 40, 0.5)

	res, err := c.Compact(memory.Warm, Config{MinWeightToPreserve: 0.7, SummaryAgeDays: 30, KeywordsAgeDays: 90})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Compacted)

	got, _, _ := s.Get(m.ID)
	assert.Equal(t, memory.Summary, got.Compression)
	assert.Equal(t, m.Embedding, got.Embedding, "embedding must be preserved")
}

func TestCompactIsIdempotent(t *testing.T) {
	c, s := newTestCompactor(t)
	seedAged(t, s, 40, 0.5)

	_, err := c.Compact(memory.Warm, Config{MinWeightToPreserve: 0.7, SummaryAgeDays: 30, KeywordsAgeDays: 90})
	require.NoError(t, err)

	res, err := c.Compact(memory.Warm, Config{MinWeightToPreserve: 0.7, SummaryAgeDays: 30, KeywordsAgeDays: 90})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Compacted, "compacting an already-compacted tier must be a no-op")
}
