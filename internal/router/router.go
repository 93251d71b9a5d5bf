// Package router extracts entities, topics, emotional valence, query keys, and candidate
// search types from a piece of text (spec.md §4.3).
package router

import (
	"strings"
	"sync"

	"github.com/dgraph-io/ristretto"

	"github.com/mnemo-run/mnemo/internal/memory"
)

// Router is single-owner and mutable, mirroring the Embedder's concurrency contract
// (spec.md §5: "Embedder and NER are shared behind a mutex").
type Router struct {
	mu    sync.Mutex
	lx    *Lexicon
	cache *ristretto.Cache
}

// New builds a Router, loading its embedded lexicon and building its result cache.
func New() (*Router, error) {
	lx, err := LoadLexicon()
	if err != nil {
		return nil, err
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Router{lx: lx, cache: cache}, nil
}

// Route runs the full pipeline from spec.md §4.3 over text.
func (r *Router) Route(text string) memory.RouterOutput {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.cache.Get(text); ok {
		return v.(memory.RouterOutput)
	}

	entities := extractEntities(text, r.lx)
	topics := topicsFrom(text, entities, r.lx)
	valence := valenceOf(text, r.lx)
	queryKeys := queryKeysFrom(entities, topics)
	searchTypes := searchTypesFor(text, entities, r.lx)

	out := memory.RouterOutput{
		Entities:         entities,
		Topics:           topics,
		EmotionalValence: valence,
		QueryKeys:        queryKeys,
		SearchTypes:      searchTypes,
	}
	r.cache.Set(text, out, 1)
	return out
}

// topicsFrom is the union of lowercased entity texts plus capitalized mid-sentence tokens
// and significant (>=5 chars, non-stopword) tokens (spec.md §4.3 step 2).
func topicsFrom(text string, entities []memory.Entity, lx *Lexicon) []string {
	seen := make(map[string]struct{})
	var topics []string

	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		topics = append(topics, s)
	}

	for _, e := range entities {
		add(e.Text)
	}

	tokens := tokenize(text)
	for _, tok := range tokens {
		if isCapitalized(tok.text) && !tok.isFirst {
			add(tok.text)
			continue
		}
		lower := strings.ToLower(tok.text)
		if len([]rune(tok.text)) >= 5 && !isInSet(lx.stopwordSet, lower) {
			add(tok.text)
		}
	}

	return topics
}

// valenceOf implements the lexicon-match valence formula from spec.md §4.3 step 3.
func valenceOf(text string, lx *Lexicon) float64 {
	var pos, neg, total int
	for _, tok := range tokenize(text) {
		lower := strings.ToLower(tok.text)
		switch {
		case isInSet(lx.positiveSet, lower):
			pos++
			total++
		case isInSet(lx.negativeSet, lower):
			neg++
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(pos-neg) / float64(total)
}

// queryKeysFrom is the lowercased deduplicated union of entity texts and topics, length
// >= 2 (spec.md §4.3 step 4).
func queryKeysFrom(entities []memory.Entity, topics []string) []string {
	seen := make(map[string]struct{})
	var keys []string

	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if len([]rune(s)) < 2 {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		keys = append(keys, s)
	}

	for _, e := range entities {
		add(e.Text)
	}
	for _, t := range topics {
		add(t)
	}

	return keys
}

// searchTypesFor implements the hint cascade from spec.md §4.3 step 5, matching against
// the hint word lists parsed from the lexicon rather than a hardcoded copy.
func searchTypesFor(text string, entities []memory.Entity, lx *Lexicon) []memory.Type {
	lower := strings.ToLower(text)

	var types []memory.Type
	add := func(t memory.Type) {
		for _, existing := range types {
			if existing == t {
				return
			}
		}
		types = append(types, t)
	}

	hasAny := func(hints []string) bool {
		for _, h := range hints {
			if strings.Contains(lower, h) {
				return true
			}
		}
		return false
	}

	if hasAny(lx.ProceduralHints) {
		add(memory.Procedural)
	}
	if hasAny(lx.SemanticHints) {
		add(memory.Semantic)
	}
	hasPerson := false
	for _, e := range entities {
		if e.Label == memory.Person {
			hasPerson = true
			break
		}
	}
	if hasAny(lx.EpisodicHints) || hasPerson {
		add(memory.Episodic)
	}

	if len(types) == 0 {
		return []memory.Type{memory.Episodic, memory.Semantic}
	}
	return types
}

// Significant reports whether a token counts toward the topic set on its own merit
// (length and stopword filtering); exported for reuse by internal/compaction's keyword
// extraction (spec.md §4.7's Keywords compaction level).
func Significant(word string, lx *Lexicon) bool {
	if len([]rune(word)) < 5 {
		return false
	}
	return !isInSet(lx.stopwordSet, strings.ToLower(word))
}
