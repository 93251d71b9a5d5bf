// Package ingestion turns raw text into a stored Memory: routing, embedding, weight
// assignment, and persistence (spec.md §4.4).
package ingestion

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mnemo-run/mnemo/internal/embeddings"
	"github.com/mnemo-run/mnemo/internal/memory"
	"github.com/mnemo-run/mnemo/internal/merrors"
	"github.com/mnemo-run/mnemo/internal/router"
	"github.com/mnemo-run/mnemo/internal/storage"
)

const minContentLength = 10

// Ingestor wires the Router, Embedder, and Store into the ingest pipeline. Grounded on
// daverage-tinyMem/internal/recall/engine.go's Recaller-as-thin-orchestrator shape: a
// small struct holding its collaborators, one entry-point method.
type Ingestor struct {
	Router   *router.Router
	Embedder embeddings.Embedder
	Store    *storage.Store
	Now      func() time.Time
}

// New builds an Ingestor. now defaults to time.Now if nil.
func New(r *router.Router, e embeddings.Embedder, s *storage.Store, now func() time.Time) *Ingestor {
	if now == nil {
		now = time.Now
	}
	return &Ingestor{Router: r, Embedder: e, Store: s, Now: now}
}

// Ingest runs the full pipeline from spec.md §4.4 and returns the stored Memory, or nil if
// text was filtered out.
func (in *Ingestor) Ingest(text string, source memory.Source, conversationID string) (*memory.Memory, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || len(trimmed) < minContentLength {
		return nil, nil
	}

	routed := in.Router.Route(trimmed)
	vec := in.Embedder.Embed(trimmed)

	memType := memory.Semantic
	if source == memory.SourceConversation {
		memType = memory.Episodic
	}

	compression := compressionForLength(len(trimmed))

	sourceBonus := 0.0
	switch source {
	case memory.SourceManual:
		sourceBonus = 0.3
	case memory.SourceConversation:
		sourceBonus = 0.1
	}
	w := 0.5 + 0.05*float64(len(routed.Entities)) + 0.2*abs(routed.EmotionalValence) + sourceBonus
	w = clamp(w, 0.1, 1.0)

	now := in.Now()
	entities := make([]string, len(routed.Entities))
	for i, e := range routed.Entities {
		entities[i] = e.Text
	}

	m := &memory.Memory{
		ID:             uuid.NewString(),
		Content:        trimmed,
		Embedding:      vec,
		MemoryType:     memType,
		Source:         source,
		Tier:           memory.Hot,
		Compression:    compression,
		Weight:         w,
		CreatedAt:      now,
		LastAccessed:   now,
		AccessCount:    0,
		ConversationID: conversationID,
		Entities:       entities,
	}

	if err := in.Store.Insert(m); err != nil {
		return nil, merrors.Wrap(merrors.Ingestion, "store ingested memory", err)
	}
	return m, nil
}

// compressionForLength is the informational-at-ingest compression hint from spec.md §4.4
// step 4; content is never actually pre-compressed here.
func compressionForLength(n int) memory.Compression {
	switch {
	case n < 100:
		return memory.Full
	case n < 500:
		return memory.Summary
	case n < 2000:
		return memory.Keywords
	default:
		return memory.Hash
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
