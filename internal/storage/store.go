// Package storage persists Memories and Tombstones and provides vector + filtered search
// over them (spec.md §4.1).
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mnemo-run/mnemo/internal/embeddings"
	"github.com/mnemo-run/mnemo/internal/memory"
	"github.com/mnemo-run/mnemo/internal/merrors"
)

// minANNRows is the row count below which Store falls back to brute-force cosine ranking
// instead of consulting the ANN index (spec.md §4.1: "ANN index is optional and only
// beneficial past a minimum row count").
const minANNRows = 500

// dbHandle is the thin wrapper Store and the migration runner share.
type dbHandle struct {
	sql *sql.DB
}

// Store is Mnemo's storage engine: a SQLite-backed column store for Memories and
// Tombstones, single-writer per daverage-tinyMem/internal/storage/storage.go's
// SetMaxOpenConns(1) + WAL discipline, with an in-process ANN layer for vector search.
type Store struct {
	db  *dbHandle
	ann *annIndex
	mu  sync.RWMutex
	log *zap.Logger
}

// Open opens (creating if necessary) a SQLite database at dataDir/mnemo.db, applies
// migrations, and builds the initial ANN index from existing rows.
func Open(dataDir string, dim int, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, merrors.Wrap(merrors.Storage, "create data directory", err)
	}
	dbPath := filepath.Join(dataDir, "mnemo.db")

	sqlDB, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on", dbPath))
	if err != nil {
		return nil, merrors.Wrap(merrors.Storage, "open database", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db := &dbHandle{sql: sqlDB}
	if err := runMigrations(db, log); err != nil {
		return nil, merrors.Wrap(merrors.Storage, "run migrations", err)
	}

	s := &Store{db: db, ann: newANNIndex(dim), log: log}
	if err := s.rebuildIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.sql.Close()
}

// rebuildIndex loads every memory row and seeds the in-memory ANN index. Called once at
// startup; incremental inserts/deletes keep the index current afterward.
func (s *Store) rebuildIndex() error {
	rows, err := s.db.sql.Query(`SELECT id, embedding FROM memories`)
	if err != nil {
		return merrors.Wrap(merrors.Storage, "load embeddings for index", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return merrors.Wrap(merrors.Storage, "scan embedding row", err)
		}
		s.ann.upsert(id, decodeEmbedding(blob))
	}
	return rows.Err()
}

// Insert stores a new Memory. Returns a storage-kind error on id collision.
func (s *Store) Insert(m *memory.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(s.db.sql, m)
}

// execer is satisfied by both *sql.DB and *sql.Tx, so InsertBatch can run its inserts
// inside its transaction.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *Store) insertLocked(ex execer, m *memory.Memory) error {
	m.Clamp()
	if m.LastAccessed.Before(m.CreatedAt) {
		m.LastAccessed = m.CreatedAt
	}

	_, err := ex.Exec(`
		INSERT INTO memories (id, content, embedding, memory_type, source, tier, compression,
			weight, created_at, last_accessed, access_count, conversation_id, entities)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Content, encodeEmbedding(m.Embedding), string(m.MemoryType), string(m.Source),
		string(m.Tier), string(m.Compression), m.Weight, formatTime(m.CreatedAt), formatTime(m.LastAccessed),
		m.AccessCount, m.ConversationID, joinEntities(m.Entities),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return merrors.Wrap(merrors.Storage, fmt.Sprintf("memory id %q already exists", m.ID), err)
		}
		return merrors.Wrap(merrors.Storage, "insert memory", err)
	}
	s.ann.upsert(m.ID, m.Embedding)
	return nil
}

// InsertBatch stores multiple memories in a single transaction.
func (s *Store) InsertBatch(memories []*memory.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.sql.Begin()
	if err != nil {
		return merrors.Wrap(merrors.Storage, "begin batch insert", err)
	}
	for _, m := range memories {
		if err := s.insertLocked(tx, m); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return merrors.Wrap(merrors.Storage, "commit batch insert", err)
	}
	return nil
}

// Get retrieves a Memory by id. ok is false if no such row exists.
func (s *Store) Get(id string) (*memory.Memory, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.sql.QueryRow(`
		SELECT id, content, embedding, memory_type, source, tier, compression, weight,
			created_at, last_accessed, access_count, conversation_id, entities
		FROM memories WHERE id = ?`, id)

	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, merrors.Wrap(merrors.Storage, "get memory", err)
	}
	return m, true, nil
}

// Delete removes a memory by id, reporting whether a row existed. Per spec.md §3.1, manual
// deletion never writes a Tombstone.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.sql.Exec(`DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, merrors.Wrap(merrors.Storage, "delete memory", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.ann.remove(id)
	}
	return n > 0, nil
}

// UpdateAccess atomically bumps access_count and last_accessed. Best-effort: failures are
// the caller's to log and ignore per spec.md §4.5 step 5.
func (s *Store) UpdateAccess(id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.sql.Exec(`UPDATE memories SET access_count = access_count + 1, last_accessed = ? WHERE id = ?`,
		formatTime(now), id)
	if err != nil {
		return merrors.Wrap(merrors.Storage, "update access stats", err)
	}
	return nil
}

// UpdateTier moves a memory to a new tier.
func (s *Store) UpdateTier(id string, tier memory.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.sql.Exec(`UPDATE memories SET tier = ? WHERE id = ?`, string(tier), id)
	if err != nil {
		return merrors.Wrap(merrors.Storage, "update tier", err)
	}
	return nil
}

// UpdateCompression replaces a memory's content and compression level. The embedding is
// never touched, per spec.md §4.7 and the Open Question decision recorded in DESIGN.md.
func (s *Store) UpdateCompression(id, content string, level memory.Compression) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.sql.Exec(`UPDATE memories SET content = ?, compression = ? WHERE id = ?`,
		content, string(level), id)
	if err != nil {
		return merrors.Wrap(merrors.Storage, "update compression", err)
	}
	return nil
}

// Search returns up to limit memories ranked by ascending vector distance (spec.md §4.1).
// Above minANNRows total rows it consults the ANN index; smaller stores fall back to exact
// brute-force ranking via SearchFiltered.
func (s *Store) Search(query embeddings.Vector, limit int) ([]*memory.Memory, error) {
	total, err := s.TotalCount()
	if err != nil {
		return nil, err
	}
	if total < minANNRows {
		return s.SearchFiltered(query, Filter{}, limit)
	}

	s.mu.RLock()
	ids, err := s.ann.query(query, limit)
	s.mu.RUnlock()
	if err != nil {
		return nil, merrors.Wrap(merrors.Storage, "ann query", err)
	}

	out := make([]*memory.Memory, 0, len(ids))
	for _, id := range ids {
		m, ok, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// Filter narrows a filtered search. Zero-value fields are not applied. Predicates conjoin
// with AND (spec.md §4.1).
type Filter struct {
	MemoryTypes    []memory.Type
	MinWeight      *float64
	CreatedAfter   *time.Time
	ConversationID string
}

// SearchFiltered returns up to limit memories matching filter, ranked by similarity to
// query (nearest first). It always ranks by brute force over the rows the filter selects;
// the ANN index is not consulted.
func (s *Store) SearchFiltered(query embeddings.Vector, filter Filter, limit int) ([]*memory.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := filter.toSQL()
	rows, err := s.db.sql.Query(`
		SELECT id, content, embedding, memory_type, source, tier, compression, weight,
			created_at, last_accessed, access_count, conversation_id, entities
		FROM memories `+where, args...)
	if err != nil {
		return nil, merrors.Wrap(merrors.Storage, "search memories", err)
	}
	defer rows.Close()

	type scored struct {
		m    *memory.Memory
		dist float64
	}
	var candidates []scored
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, merrors.Wrap(merrors.Storage, "scan search row", err)
		}
		sim := embeddings.Cosine(query, m.Embedding)
		candidates = append(candidates, scored{m: m, dist: 1 - sim})
	}
	if err := rows.Err(); err != nil {
		return nil, merrors.Wrap(merrors.Storage, "iterate search rows", err)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]*memory.Memory, len(candidates))
	for i, c := range candidates {
		out[i] = c.m
	}
	return out, nil
}

func (f Filter) toSQL() (string, []any) {
	var clauses []string
	var args []any

	if len(f.MemoryTypes) > 0 {
		placeholders := make([]string, len(f.MemoryTypes))
		for i, t := range f.MemoryTypes {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		clauses = append(clauses, "memory_type IN ("+strings.Join(placeholders, ",")+")")
	}
	if f.MinWeight != nil {
		clauses = append(clauses, "weight >= ?")
		args = append(args, *f.MinWeight)
	}
	if f.CreatedAfter != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, formatTime(*f.CreatedAfter))
	}
	if f.ConversationID != "" {
		clauses = append(clauses, "conversation_id = ?")
		args = append(args, f.ConversationID)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// ListByTier returns every memory currently in tier.
func (s *Store) ListByTier(tier memory.Tier) ([]*memory.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.sql.Query(`
		SELECT id, content, embedding, memory_type, source, tier, compression, weight,
			created_at, last_accessed, access_count, conversation_id, entities
		FROM memories WHERE tier = ?`, string(tier))
	if err != nil {
		return nil, merrors.Wrap(merrors.Storage, "list by tier", err)
	}
	defer rows.Close()

	var out []*memory.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, merrors.Wrap(merrors.Storage, "scan tier row", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountByTier returns the number of memories currently in tier.
func (s *Store) CountByTier(tier memory.Tier) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.sql.QueryRow(`SELECT COUNT(*) FROM memories WHERE tier = ?`, string(tier)).Scan(&n)
	if err != nil {
		return 0, merrors.Wrap(merrors.Storage, "count by tier", err)
	}
	return n, nil
}

// TotalCount returns the total number of memories in the store.
func (s *Store) TotalCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.sql.QueryRow(`SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, merrors.Wrap(merrors.Storage, "total count", err)
	}
	return n, nil
}

// row is the minimal interface satisfied by both *sql.Row and *sql.Rows, letting Get and
// the list/search paths share one scan routine.
type row interface {
	Scan(dest ...any) error
}

func scanMemory(r row) (*memory.Memory, error) {
	var m memory.Memory
	var embeddingBlob []byte
	var memType, source, tier, compression, createdAt, lastAccessed, entities string

	err := r.Scan(&m.ID, &m.Content, &embeddingBlob, &memType, &source, &tier, &compression,
		&m.Weight, &createdAt, &lastAccessed, &m.AccessCount, &m.ConversationID, &entities)
	if err != nil {
		return nil, err
	}

	m.Embedding = decodeEmbedding(embeddingBlob)
	m.MemoryType = memory.Type(memType)
	m.Source = memory.Source(source)
	m.Tier = memory.Tier(tier)
	m.Compression = memory.Compression(compression)
	m.CreatedAt, _ = parseTime(createdAt)
	m.LastAccessed, _ = parseTime(lastAccessed)
	m.Entities = splitEntities(entities)

	return &m, nil
}

const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

func joinEntities(entities []string) string { return strings.Join(entities, ",") }

func splitEntities(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
