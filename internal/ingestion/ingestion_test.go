package ingestion

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-run/mnemo/internal/embeddings"
	"github.com/mnemo-run/mnemo/internal/logging"
	"github.com/mnemo-run/mnemo/internal/memory"
	"github.com/mnemo-run/mnemo/internal/router"
	"github.com/mnemo-run/mnemo/internal/storage"
)

func newTestIngestor(t *testing.T) *Ingestor {
	t.Helper()
	r, err := router.New()
	require.NoError(t, err)
	e := embeddings.NewHashEmbedder(8)
	s, err := storage.Open(filepath.Join(t.TempDir(), "data"), 8, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	fixed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return New(r, e, s, func() time.Time { return fixed })
}

func TestIngestFiltersEmptyText(t *testing.T) {
	in := newTestIngestor(t)
	m, err := in.Ingest("   ", memory.SourceConversation, "conv-1")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestIngestFiltersTooShort(t *testing.T) {
	in := newTestIngestor(t)
	m, err := in.Ingest("short", memory.SourceConversation, "conv-1")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestIngestStoresMemoryWithClampedWeight(t *testing.T) {
	in := newTestIngestor(t)
	m, err := in.Ingest("The user mentioned they really love working with Alice on ProjectX", memory.SourceManual, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.GreaterOrEqual(t, m.Weight, 0.1)
	assert.LessOrEqual(t, m.Weight, 1.0)
	assert.Equal(t, memory.Hot, m.Tier)
	assert.Equal(t, memory.Semantic, m.MemoryType)

	got, ok, err := in.Store.Get(m.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, m.Content, got.Content)
}

func TestIngestConversationSourceIsEpisodic(t *testing.T) {
	in := newTestIngestor(t)
	m, err := in.Ingest("We had a long meeting about the roadmap yesterday afternoon", memory.SourceConversation, "conv-2")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, memory.Episodic, m.MemoryType)
}
