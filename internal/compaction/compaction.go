// Package compaction shrinks aging, low-value memory content while always preserving the
// embedding, so search keeps working (spec.md §4.7).
package compaction

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mnemo-run/mnemo/internal/memory"
	"github.com/mnemo-run/mnemo/internal/merrors"
	"github.com/mnemo-run/mnemo/internal/router"
	"github.com/mnemo-run/mnemo/internal/storage"
)

// archivalMarker replaces content compacted to Hash level.
const archivalMarker = "[archived]"

const summarySentences = 3
const keywordLimit = 10
const minKeywordLength = 4

// Config mirrors the [capacity] section fields the compactor reads (spec.md §4.12).
type Config struct {
	MinWeightToPreserve float64
	SummaryAgeDays      int
	KeywordsAgeDays     int
}

// Result reports what a Compact call did.
type Result struct {
	Compacted         int
	SkippedHighWeight int
	AlreadyCompressed int
	IDs               []string
}

// Compactor walks a tier and downgrades compression on eligible memories.
type Compactor struct {
	Store  *storage.Store
	Lexicon *router.Lexicon
	Now    func() time.Time
}

// New builds a Compactor. now defaults to time.Now if nil.
func New(s *storage.Store, lx *router.Lexicon, now func() time.Time) *Compactor {
	if now == nil {
		now = time.Now
	}
	return &Compactor{Store: s, Lexicon: lx, Now: now}
}

// Compact walks every memory in tier and applies spec.md §4.7's rules.
func (c *Compactor) Compact(tier memory.Tier, cfg Config) (Result, error) {
	memories, err := c.Store.ListByTier(tier)
	if err != nil {
		return Result{}, merrors.Wrap(merrors.Storage, "list tier for compaction", err)
	}

	now := c.Now()
	var res Result

	for _, m := range memories {
		if m.Weight >= cfg.MinWeightToPreserve {
			res.SkippedHighWeight++
			continue
		}

		ageDays := now.Sub(m.CreatedAt).Hours() / 24
		target := targetLevel(ageDays, cfg)
		if target == m.Compression || !m.Compression.Downgrades(target) {
			res.AlreadyCompressed++
			continue
		}

		newContent := compress(m.Content, target, c.Lexicon)
		if err := c.Store.UpdateCompression(m.ID, newContent, target); err != nil {
			return res, merrors.Wrap(merrors.Storage, "update compression", err)
		}
		res.Compacted++
		res.IDs = append(res.IDs, m.ID)
	}

	return res, nil
}

func targetLevel(ageDays float64, cfg Config) memory.Compression {
	switch {
	case ageDays >= float64(cfg.KeywordsAgeDays):
		return memory.Keywords
	case ageDays >= float64(cfg.SummaryAgeDays):
		return memory.Summary
	default:
		return memory.Full
	}
}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

func compress(content string, level memory.Compression, lx *router.Lexicon) string {
	switch level {
	case memory.Summary:
		sentences := sentenceSplit.Split(content, -1)
		var kept []string
		for _, s := range sentences {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			kept = append(kept, s)
			if len(kept) == summarySentences {
				break
			}
		}
		return strings.Join(kept, ". ")
	case memory.Keywords:
		return strings.Join(keywordsOf(content, lx), " ")
	case memory.Hash:
		return archivalMarker
	default:
		return content
	}
}

// keywordsOf extracts unique lowercased words >= minKeywordLength, stopword-filtered, up
// to keywordLimit, sorted alphabetically (spec.md §4.7). With a lexicon, router.Significant
// also applies, which drops words shorter than 5 characters.
func keywordsOf(content string, lx *router.Lexicon) []string {
	fields := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})

	seen := make(map[string]struct{})
	var keywords []string
	for _, w := range fields {
		if len(w) < minKeywordLength {
			continue
		}
		if lx != nil && !router.Significant(w, lx) {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		keywords = append(keywords, w)
		if len(keywords) == keywordLimit {
			break
		}
	}
	sort.Strings(keywords)
	return keywords
}
