package eviction

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-run/mnemo/internal/config"
	"github.com/mnemo-run/mnemo/internal/embeddings"
	"github.com/mnemo-run/mnemo/internal/logging"
	"github.com/mnemo-run/mnemo/internal/memory"
	"github.com/mnemo-run/mnemo/internal/storage"
)

func TestCapacityStatusThresholds(t *testing.T) {
	cfg := config.Capacity{WarningThreshold: 0.70, EvictionThreshold: 0.80, AggressiveThreshold: 0.95}
	assert.Equal(t, Normal, CapacityStatus(50, 100, cfg))
	assert.Equal(t, Warning, CapacityStatus(70, 100, cfg))
	assert.Equal(t, EvictionNeeded, CapacityStatus(80, 100, cfg))
	assert.Equal(t, AggressiveEvictionNeeded, CapacityStatus(96, 100, cfg))
}

func seedLowWeight(t *testing.T, s *storage.Store, id string, weight float64, entities []string, createdAt time.Time) *memory.Memory {
	t.Helper()
	m := &memory.Memory{
		ID:           id,
		Content:      "eviction candidate content that is long enough to pass filters",
		Embedding:    embeddings.Vector{0.1, 0.2, 0.3, 0.4},
		MemoryType:   memory.Semantic,
		Source:       memory.SourceConversation,
		Tier:         memory.Warm,
		Compression:  memory.Full,
		Weight:       weight,
		CreatedAt:    createdAt,
		LastAccessed: createdAt,
		Entities:     entities,
	}
	require.NoError(t, s.Insert(m))
	return m
}

func TestEvictIfNeededTombstonesLowestPriority(t *testing.T) {
	s, err := storage.Open(filepath.Join(t.TempDir(), "data"), 4, logging.Nop())
	require.NoError(t, err)
	defer s.Close()

	old := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	lowest := seedLowWeight(t, s, uuid.NewString(), 0.05, []string{"projectX", "alice"}, old)
	seedLowWeight(t, s, uuid.NewString(), 0.9, []string{"bob"}, old)
	seedLowWeight(t, s, uuid.NewString(), 0.9, []string{"carol"}, old)
	seedLowWeight(t, s, uuid.NewString(), 0.9, []string{"dave"}, old)

	// 4 memories against a max of 5 lands at ratio 0.80, the EvictionNeeded band (not
	// AggressiveEvictionNeeded, which only kicks in at >=0.95) so eviction reason is
	// LowWeight rather than StoragePressure.
	cfg := config.Capacity{
		WarningThreshold:    0.70,
		EvictionThreshold:   0.80,
		AggressiveThreshold: 0.95,
		MaxMemoriesPerTier:  5,
		RecentAccessHours:   24,
		MinWeightProtected:  0.7,
	}
	ev := New(s, config.Weight{DecayRate: 0.01}, cfg, func() time.Time { return fixed })

	evicted, err := ev.EvictIfNeeded(memory.Warm)
	require.NoError(t, err)
	require.Len(t, evicted, 1)
	assert.Equal(t, lowest.ID, evicted[0])

	_, ok, err := s.Get(lowest.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	tomb, ok, err := s.GetTombstone(lowest.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"projectX", "alice"}, tomb.Topics)
	assert.Equal(t, memory.ReasonLowWeight, tomb.Reason.Kind)
}

func TestEvictIfNeededAggressiveReportsStoragePressure(t *testing.T) {
	s, err := storage.Open(filepath.Join(t.TempDir(), "data"), 4, logging.Nop())
	require.NoError(t, err)
	defer s.Close()

	old := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	lowest := seedLowWeight(t, s, uuid.NewString(), 0.05, []string{"projectX"}, old)
	seedLowWeight(t, s, uuid.NewString(), 0.9, []string{"bob"}, old)

	cfg := config.Capacity{
		WarningThreshold:    0.70,
		EvictionThreshold:   0.80,
		AggressiveThreshold: 0.95,
		MaxMemoriesPerTier:  2,
		RecentAccessHours:   24,
		MinWeightProtected:  0.7,
	}
	ev := New(s, config.Weight{DecayRate: 0.01}, cfg, func() time.Time { return fixed })

	evicted, err := ev.EvictIfNeeded(memory.Warm)
	require.NoError(t, err)
	require.Len(t, evicted, 1)
	assert.Equal(t, lowest.ID, evicted[0])

	tomb, ok, err := s.GetTombstone(lowest.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, memory.ReasonStoragePressure, tomb.Reason.Kind)
}

func TestEvictIfNeededNoopBelowThreshold(t *testing.T) {
	s, err := storage.Open(filepath.Join(t.TempDir(), "data"), 4, logging.Nop())
	require.NoError(t, err)
	defer s.Close()

	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	seedLowWeight(t, s, uuid.NewString(), 0.1, nil, fixed)

	cfg := config.Capacity{WarningThreshold: 0.70, EvictionThreshold: 0.80, AggressiveThreshold: 0.95, MaxMemoriesPerTier: 100}
	ev := New(s, config.Weight{}, cfg, func() time.Time { return fixed })

	evicted, err := ev.EvictIfNeeded(memory.Warm)
	require.NoError(t, err)
	assert.Empty(t, evicted)
}
