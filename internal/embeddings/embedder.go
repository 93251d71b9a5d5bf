// Package embeddings maps text to fixed-dimension vectors for semantic search.
package embeddings

import (
	"crypto/sha256"
	"math"
	"strings"
	"sync"
)

// Vector is a fixed-dimension embedding.
type Vector []float32

// Embedder is single-owner and mutable per spec.md §4.2: embed(text) and embed_batch(texts)
// are deterministic per instance, and callers are expected to serialize access (model
// forward passes are not assumed thread-safe).
type Embedder interface {
	Embed(text string) Vector
	EmbedBatch(texts []string) []Vector
	Dimension() int
}

// HashEmbedder is a dependency-free, fully deterministic embedder: half its dimensions
// come from a SHA-256 digest of the text, the other half from character-frequency
// features, then the whole vector is unit-normalized. It requires no model weights and no
// network access, so it satisfies "model load is eager at construction" trivially.
type HashEmbedder struct {
	mu  sync.Mutex
	dim int
}

// NewHashEmbedder builds a HashEmbedder producing vectors of dim dimensions.
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{dim: dim}
}

func (e *HashEmbedder) Dimension() int { return e.dim }

func (e *HashEmbedder) Embed(text string) Vector {
	e.mu.Lock()
	defer e.mu.Unlock()
	return hashEmbed(text, e.dim)
}

func (e *HashEmbedder) EmbedBatch(texts []string) []Vector {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Vector, len(texts))
	for i, t := range texts {
		out[i] = hashEmbed(t, e.dim)
	}
	return out
}

// hashEmbed is the pure function backing HashEmbedder; split out so it needs no lock and
// is trivially unit-testable.
func hashEmbed(text string, dim int) Vector {
	v := make([]float32, dim)
	half := dim / 2

	digest := sha256.Sum256([]byte(text))
	for i := 0; i < half; i++ {
		b := digest[i%len(digest)]
		v[i] = (float32(b)/255.0)*2 - 1
	}

	freq := make(map[rune]int)
	lower := strings.ToLower(text)
	for _, r := range lower {
		freq[r]++
	}
	total := len(lower)
	for i := half; i < dim; i++ {
		r := rune('a' + (i-half)%26)
		if total == 0 {
			v[i] = 0
			continue
		}
		v[i] = float32(freq[r]) / float32(total)
	}

	return normalize(v)
}

func normalize(v []float32) Vector {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// Cosine computes cosine similarity between a and b, clamped to [-1, 1] per spec.md §4.5.
// Vectors of mismatched length are treated as maximally dissimilar.
func Cosine(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return -1
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}
