// Package eviction removes low-priority memories under storage pressure, leaving a
// Tombstone behind for each (spec.md §4.8).
package eviction

import (
	"sort"
	"time"

	"github.com/mnemo-run/mnemo/internal/config"
	"github.com/mnemo-run/mnemo/internal/memory"
	"github.com/mnemo-run/mnemo/internal/merrors"
	"github.com/mnemo-run/mnemo/internal/storage"
	"github.com/mnemo-run/mnemo/internal/weight"
)

// Status is the capacity status of a tier, driving whether eviction runs at all.
type Status string

const (
	Normal                   Status = "normal"
	Warning                  Status = "warning"
	EvictionNeeded           Status = "eviction_needed"
	AggressiveEvictionNeeded Status = "aggressive_eviction_needed"
)

// CapacityStatus classifies count/max against the thresholds from spec.md §4.8.
func CapacityStatus(count, max int, cfg config.Capacity) Status {
	if max <= 0 {
		return Normal
	}
	ratio := float64(count) / float64(max)
	switch {
	case ratio >= cfg.AggressiveThreshold:
		return AggressiveEvictionNeeded
	case ratio >= cfg.EvictionThreshold:
		return EvictionNeeded
	case ratio >= cfg.WarningThreshold:
		return Warning
	default:
		return Normal
	}
}

// targetRatio is the return-to ratio for a given eviction status (spec.md §4.8).
func targetRatio(status Status) float64 {
	if status == AggressiveEvictionNeeded {
		return 0.70
	}
	return 0.75
}

// Evictor evicts lowest-priority memories from a tier once it crosses a pressure
// threshold, grounded on daverage-tinyMem/internal/memory/service.go's
// handleConflictingMemories/MarkAsSuperseded idiom of resolving conflicts via one
// orchestrating method over Store.
type Evictor struct {
	Store    *storage.Store
	Weight   config.Weight
	Capacity config.Capacity
	Now      func() time.Time
}

// New builds an Evictor. now defaults to time.Now if nil.
func New(s *storage.Store, w config.Weight, capacity config.Capacity, now func() time.Time) *Evictor {
	if now == nil {
		now = time.Now
	}
	return &Evictor{Store: s, Weight: w, Capacity: capacity, Now: now}
}

func (ev *Evictor) protected(m *memory.Memory, now time.Time) bool {
	recentHours := now.Sub(m.LastAccessed).Hours()
	if recentHours <= float64(ev.Capacity.RecentAccessHours) {
		return true
	}
	return m.Weight >= ev.Capacity.MinWeightProtected
}

// EvictIfNeeded checks tier's capacity status and, if pressured, evicts the lowest-priority
// unprotected memories until the tier's target ratio is met, tombstoning each.
func (ev *Evictor) EvictIfNeeded(tier memory.Tier) ([]string, error) {
	count, err := ev.Store.CountByTier(tier)
	if err != nil {
		return nil, err
	}

	status := CapacityStatus(count, ev.Capacity.MaxMemoriesPerTier, ev.Capacity)
	if status == Normal || status == Warning {
		return nil, nil
	}

	memories, err := ev.Store.ListByTier(tier)
	if err != nil {
		return nil, err
	}

	now := ev.Now()
	type candidate struct {
		m        *memory.Memory
		priority float64
	}
	var evictable []candidate
	for _, m := range memories {
		if ev.protected(m, now) {
			continue
		}
		evictable = append(evictable, candidate{m: m, priority: weight.EvictionPriority(m, ev.Weight, now)})
	}
	sort.Slice(evictable, func(i, j int) bool { return evictable[i].priority < evictable[j].priority })

	target := int(float64(ev.Capacity.MaxMemoriesPerTier) * targetRatio(status))
	toEvict := count - target
	if toEvict > len(evictable) {
		toEvict = len(evictable)
	}
	if toEvict <= 0 {
		return nil, nil
	}

	reason := memory.ReasonLowWeight
	if status == AggressiveEvictionNeeded {
		reason = memory.ReasonStoragePressure
	}

	var evicted []string
	for _, c := range evictable[:toEvict] {
		tomb := &memory.Tombstone{
			OriginalID:      c.m.ID,
			EvictedAt:       now,
			Topics:          c.m.Entities,
			Participants:    nil,
			ApproximateDate: c.m.CreatedAt,
			Reason:          memory.TombstoneReason{Kind: reason},
		}
		if err := ev.Store.InsertTombstone(tomb); err != nil {
			return evicted, merrors.Wrap(merrors.Storage, "insert tombstone", err)
		}
		if _, err := ev.Store.Delete(c.m.ID); err != nil {
			return evicted, merrors.Wrap(merrors.Storage, "delete evicted memory", err)
		}
		evicted = append(evicted, c.m.ID)
	}

	return evicted, nil
}
