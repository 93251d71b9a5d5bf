// Package tier migrates memories between storage tiers based on access patterns
// (spec.md §4.6).
package tier

import (
	"fmt"

	"github.com/mnemo-run/mnemo/internal/memory"
	"github.com/mnemo-run/mnemo/internal/merrors"
	"github.com/mnemo-run/mnemo/internal/storage"
)

// Manager migrates, promotes, and demotes memories between Hot, Warm, and Cold tiers.
type Manager struct {
	Store                  *storage.Store
	AccessPromoteThreshold int
}

// New builds a Manager.
func New(s *storage.Store, accessPromoteThreshold int) *Manager {
	return &Manager{Store: s, AccessPromoteThreshold: accessPromoteThreshold}
}

// Migrate moves id from tier `from` to `to`, erroring if the memory's current tier does
// not equal `from` (spec.md §4.6).
func (mgr *Manager) Migrate(id string, from, to memory.Tier) error {
	m, ok, err := mgr.Store.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		return merrors.New(merrors.Storage, fmt.Sprintf("migrate: memory %q not found", id))
	}
	if m.Tier != from {
		return merrors.New(merrors.Storage, fmt.Sprintf("migrate: memory %q is in tier %q, not %q", id, m.Tier, from))
	}
	return mgr.Store.UpdateTier(id, to)
}

func promoted(t memory.Tier) memory.Tier {
	switch t {
	case memory.Cold:
		return memory.Warm
	case memory.Warm:
		return memory.Hot
	default:
		return memory.Hot
	}
}

func demoted(t memory.Tier) memory.Tier {
	switch t {
	case memory.Hot:
		return memory.Warm
	case memory.Warm:
		return memory.Cold
	default:
		return memory.Cold
	}
}

// Promote moves id one tier up: Cold->Warm->Hot. No-op at Hot.
func (mgr *Manager) Promote(id string) error {
	m, ok, err := mgr.Store.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		return merrors.New(merrors.Storage, fmt.Sprintf("promote: memory %q not found", id))
	}
	if m.Tier == memory.Hot {
		return nil
	}
	return mgr.Store.UpdateTier(id, promoted(m.Tier))
}

// Demote moves id one tier down: Hot->Warm->Cold. No-op at Cold.
func (mgr *Manager) Demote(id string) error {
	m, ok, err := mgr.Store.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		return merrors.New(merrors.Storage, fmt.Sprintf("demote: memory %q not found", id))
	}
	if m.Tier == memory.Cold {
		return nil
	}
	return mgr.Store.UpdateTier(id, demoted(m.Tier))
}

// CheckAndPromote promotes id if its access_count has reached AccessPromoteThreshold.
func (mgr *Manager) CheckAndPromote(id string) error {
	m, ok, err := mgr.Store.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		return merrors.New(merrors.Storage, fmt.Sprintf("check_and_promote: memory %q not found", id))
	}
	if m.AccessCount >= int64(mgr.AccessPromoteThreshold) {
		return mgr.Promote(id)
	}
	return nil
}
