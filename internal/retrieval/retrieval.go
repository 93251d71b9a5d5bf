// Package retrieval embeds a query, gathers ANN candidates, reranks them by effective
// weight, and optionally applies deterministic ordering (spec.md §4.5).
package retrieval

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mnemo-run/mnemo/internal/config"
	"github.com/mnemo-run/mnemo/internal/embeddings"
	"github.com/mnemo-run/mnemo/internal/memory"
	"github.com/mnemo-run/mnemo/internal/merrors"
	"github.com/mnemo-run/mnemo/internal/router"
	"github.com/mnemo-run/mnemo/internal/storage"
	"github.com/mnemo-run/mnemo/internal/weight"
)

const (
	candidateMultiplier = 3
	simWeight           = 0.7
	rerankWeight        = 0.3
)

// Retriever runs the two-stage ranking pipeline from spec.md §4.5. Grounded on
// daverage-tinyMem/internal/semantic/engine.go's SemanticEngine: a small struct over
// Store/Embedder plus a HybridWeight-style config, one entry point.
type Retriever struct {
	Store    *storage.Store
	Embedder embeddings.Embedder
	Router   *router.Router
	Weight   config.Weight
	Det      config.Deterministic
	Now      func() time.Time
}

// New builds a Retriever. now defaults to time.Now if nil.
func New(s *storage.Store, e embeddings.Embedder, r *router.Router, w config.Weight, det config.Deterministic, now func() time.Time) *Retriever {
	if now == nil {
		now = time.Now
	}
	return &Retriever{Store: s, Embedder: e, Router: r, Weight: w, Det: det, Now: now}
}

// Retrieve embeds queryText and runs RetrieveEmbedding.
func (rt *Retriever) Retrieve(queryText string, limit int) ([]memory.RetrievedMemory, error) {
	queryEmbedding := rt.Embedder.Embed(queryText)
	var queryEntities []string
	if rt.Router != nil {
		out := rt.Router.Route(queryText)
		for _, e := range out.Entities {
			queryEntities = append(queryEntities, strings.ToLower(e.Text))
		}
	}
	return rt.retrieve(queryEmbedding, queryEntities, limit)
}

// RetrieveEmbedding runs the pipeline against a pre-embedded query, for callers that
// already have a vector (spec.md §4.5: "a parallel form accepting a pre-embedded query").
func (rt *Retriever) RetrieveEmbedding(queryEmbedding embeddings.Vector, limit int) ([]memory.RetrievedMemory, error) {
	return rt.retrieve(queryEmbedding, nil, limit)
}

func (rt *Retriever) retrieve(queryEmbedding embeddings.Vector, queryEntities []string, limit int) ([]memory.RetrievedMemory, error) {
	candidateLimit := limit * candidateMultiplier
	if candidateLimit <= 0 {
		candidateLimit = limit
	}

	candidates, err := rt.Store.Search(queryEmbedding, candidateLimit)
	if err != nil {
		return nil, merrors.Wrap(merrors.Retrieval, "search candidates", err)
	}

	now := rt.Now()
	results := make([]memory.RetrievedMemory, 0, len(candidates))
	for _, m := range candidates {
		sim := clamp(embeddings.Cosine(queryEmbedding, m.Embedding), -1, 1)
		eff := weight.Effective(m, rt.Weight, now)
		base := sim*simWeight + eff*rerankWeight

		var final float64
		if rt.Det.Enabled {
			topicBoost := topicOverlap(queryEntities, m.Entities)
			final = quantize(base+rt.Det.TopicOverlapWeight*topicBoost, rt.Det.DecimalPlaces)
		} else {
			final = base
		}

		results = append(results, memory.RetrievedMemory{
			Memory:          m,
			SimilarityScore: sim,
			EffectiveWeight: eff,
			FinalScore:      final,
		})
	}

	sortResults(results, rt.Det.Enabled)

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	for _, r := range results {
		if err := rt.Store.UpdateAccess(r.Memory.ID, now); err != nil {
			// Best-effort per spec.md §4.5 step 5: log and ignore in a real deployment; the
			// caller here has no logger handle, so the failure is simply not fatal to
			// retrieval.
			continue
		}
	}

	return results, nil
}

// sortResults orders by descending final_score. Deterministic mode uses total-order float
// comparison (NaN last) with tiebreakers: older created_at first, then ascending id.
// Non-deterministic mode uses a stable partial-order sort.
func sortResults(results []memory.RetrievedMemory, deterministic bool) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if deterministic {
			cmp := totalOrderCompare(a.FinalScore, b.FinalScore)
			if cmp != 0 {
				return cmp > 0
			}
			if !a.Memory.CreatedAt.Equal(b.Memory.CreatedAt) {
				return a.Memory.CreatedAt.Before(b.Memory.CreatedAt)
			}
			return a.Memory.ID < b.Memory.ID
		}
		return a.FinalScore > b.FinalScore
	})
}

// totalOrderCompare returns -1/0/1 comparing a and b with NaN sorting last, eliminating
// NaN-induced non-determinism (spec.md §9 design note).
func totalOrderCompare(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return -1
	case bNaN:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// quantize rounds v to the given number of decimal places.
func quantize(v float64, decimalPlaces int) float64 {
	scale := math.Pow(10, float64(decimalPlaces))
	return math.Round(v*scale) / scale
}

// topicOverlap is |query_entities ∩ memory.entities| / max(1, |query_entities|), case
// insensitive (spec.md §4.5 step 3).
func topicOverlap(queryEntities, memoryEntities []string) float64 {
	if len(queryEntities) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(memoryEntities))
	for _, e := range memoryEntities {
		set[strings.ToLower(e)] = struct{}{}
	}
	var overlap int
	for _, e := range queryEntities {
		if _, ok := set[e]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(max(1, len(queryEntities)))
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
