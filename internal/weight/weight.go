// Package weight computes the time- and access-adjusted "effective weight" used for
// ranking and eviction priority (spec.md §4.5, §4.8).
package weight

import (
	"math"
	"strings"
	"time"

	"github.com/mnemo-run/mnemo/internal/config"
	"github.com/mnemo-run/mnemo/internal/memory"
)

// emotionalWords is a small content-word heuristic lexicon standing in for real sentiment
// analysis (spec.md §4.5: "lightweight content-word heuristic").
var emotionalWords = map[string]float64{
	"love": 0.3, "hate": 0.3, "excited": 0.25, "worried": 0.2, "angry": 0.3,
	"happy": 0.2, "sad": 0.2, "afraid": 0.25, "thrilled": 0.3, "furious": 0.3,
	"anxious": 0.2, "grateful": 0.2, "disappointed": 0.2, "urgent": 0.2, "critical": 0.2,
}

// EmotionalBoost scores content on a lightweight bag-of-words heuristic. Effective uses it
// to boost retrieval and eviction priority; Ingestion weights new memories by the Router's
// lexicon valence instead.
func EmotionalBoost(content string) float64 {
	lower := strings.ToLower(content)
	var boost float64
	for word, w := range emotionalWords {
		if strings.Contains(lower, word) {
			boost += w
		}
	}
	if boost > 1 {
		boost = 1
	}
	return boost
}

// ageInDays returns the age of t relative to now, in fractional days. Never negative.
func ageInDays(t, now time.Time) float64 {
	d := now.Sub(t).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

// Effective computes calculate_effective_weight(m, cfg) from spec.md §4.5, parameterized
// on an explicit now for deterministic testing.
//
// owner_multiplier and association_multiplier are config fields that this formula does not
// read (Validate does not check them either): v1 has no association graph or ownership model, so their
// contribution is fixed at 0 (spec.md §9 open question).
func Effective(m *memory.Memory, cfg config.Weight, now time.Time) float64 {
	accessBoost := 1 + cfg.AccessMultiplier*math.Log1p(float64(m.AccessCount))
	decay := math.Exp(-cfg.DecayRate * ageInDays(m.CreatedAt, now))
	emotional := 1 + cfg.EmotionalMultiplier*EmotionalBoost(m.Content)

	w := m.Weight * accessBoost * decay * emotional
	if w < 0 {
		return 0
	}
	return w
}

// RecencyBonus is the eviction-priority recency term from spec.md §4.8.
func RecencyBonus(lastAccessed, now time.Time) float64 {
	hours := now.Sub(lastAccessed).Hours()
	if hours < 0 {
		hours = 0
	}
	return 0.3 / (1 + hours/24)
}

// EvictionPriority is P(m) from spec.md §4.8. association_bonus is fixed at 0 in v1.
func EvictionPriority(m *memory.Memory, cfg config.Weight, now time.Time) float64 {
	return Effective(m, cfg, now) + RecencyBonus(m.LastAccessed, now)
}
