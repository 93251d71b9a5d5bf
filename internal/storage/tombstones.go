package storage

import (
	"database/sql"
	"strings"

	"github.com/mnemo-run/mnemo/internal/memory"
	"github.com/mnemo-run/mnemo/internal/merrors"
)

// InsertTombstone records the residue of an evicted memory (spec.md §3.2, §4.8).
func (s *Store) InsertTombstone(t *memory.Tombstone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.sql.Exec(`
		INSERT INTO tombstones (original_id, evicted_at, topics, participants, approximate_date, reason_kind, superseded_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.OriginalID, formatTime(t.EvictedAt), joinEntities(t.Topics), joinEntities(t.Participants),
		formatTime(t.ApproximateDate), string(t.Reason.Kind), t.Reason.SupersededBy,
	)
	if err != nil {
		return merrors.Wrap(merrors.Storage, "insert tombstone", err)
	}
	return nil
}

// GetTombstone retrieves a tombstone by the id of the memory it replaced.
func (s *Store) GetTombstone(originalID string) (*memory.Tombstone, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.sql.QueryRow(`
		SELECT original_id, evicted_at, topics, participants, approximate_date, reason_kind, superseded_by
		FROM tombstones WHERE original_id = ?`, originalID)

	t, err := scanTombstone(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, merrors.Wrap(merrors.Storage, "get tombstone", err)
	}
	return t, true, nil
}

// SearchTombstonesByTopic returns every tombstone whose topics contain substr
// (case-insensitive).
func (s *Store) SearchTombstonesByTopic(substr string) ([]*memory.Tombstone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.sql.Query(`
		SELECT original_id, evicted_at, topics, participants, approximate_date, reason_kind, superseded_by
		FROM tombstones WHERE LOWER(topics) LIKE ?`, "%"+strings.ToLower(substr)+"%")
	if err != nil {
		return nil, merrors.Wrap(merrors.Storage, "search tombstones by topic", err)
	}
	defer rows.Close()

	var out []*memory.Tombstone
	for rows.Next() {
		t, err := scanTombstone(rows)
		if err != nil {
			return nil, merrors.Wrap(merrors.Storage, "scan tombstone row", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListAllTombstones returns every tombstone in the store.
func (s *Store) ListAllTombstones() ([]*memory.Tombstone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.sql.Query(`
		SELECT original_id, evicted_at, topics, participants, approximate_date, reason_kind, superseded_by
		FROM tombstones`)
	if err != nil {
		return nil, merrors.Wrap(merrors.Storage, "list all tombstones", err)
	}
	defer rows.Close()

	var out []*memory.Tombstone
	for rows.Next() {
		t, err := scanTombstone(rows)
		if err != nil {
			return nil, merrors.Wrap(merrors.Storage, "scan tombstone row", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTombstone(r row) (*memory.Tombstone, error) {
	var t memory.Tombstone
	var evictedAt, topics, participants, approxDate, reasonKind, supersededBy string

	err := r.Scan(&t.OriginalID, &evictedAt, &topics, &participants, &approxDate, &reasonKind, &supersededBy)
	if err != nil {
		return nil, err
	}

	t.EvictedAt, _ = parseTime(evictedAt)
	t.ApproximateDate, _ = parseTime(approxDate)
	t.Topics = splitEntities(topics)
	t.Participants = splitEntities(participants)
	t.Reason = memory.TombstoneReason{
		Kind:         memory.TombstoneReasonKind(reasonKind),
		SupersededBy: supersededBy,
	}

	return &t, nil
}
