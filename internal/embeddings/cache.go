package embeddings

import (
	"github.com/dgraph-io/ristretto"
)

// CachedEmbedder wraps an Embedder with a ristretto cost-aware in-memory cache keyed on
// text, avoiding recomputation for repeated ingestion/retrieval of the same content.
// Grounded on daverage-tinyMem/internal/embeddings/cache.go's cache-or-compute idiom,
// swapping the hand-rolled map+TTL implementation for ristretto (used elsewhere in the
// example corpus for exactly this cost-aware caching role).
type CachedEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCachedEmbedder wraps inner with an in-memory cache sized for maxEntries.
func NewCachedEmbedder(inner Embedder, maxEntries int64) (*CachedEmbedder, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

func (c *CachedEmbedder) Embed(text string) Vector {
	if v, ok := c.cache.Get(text); ok {
		return v.(Vector)
	}
	v := c.inner.Embed(text)
	c.cache.Set(text, v, 1)
	return v
}

func (c *CachedEmbedder) EmbedBatch(texts []string) []Vector {
	out := make([]Vector, len(texts))
	miss := make([]string, 0, len(texts))
	missIdx := make([]int, 0, len(texts))

	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			out[i] = v.(Vector)
			continue
		}
		miss = append(miss, t)
		missIdx = append(missIdx, i)
	}

	if len(miss) > 0 {
		computed := c.inner.EmbedBatch(miss)
		for j, idx := range missIdx {
			out[idx] = computed[j]
			c.cache.Set(miss[j], computed[j], 1)
		}
	}

	return out
}
