// Package inject renders retrieved memories as a tagged XML block under a token budget,
// for splicing into an upstream request body by internal/provider.
package inject

import (
	"fmt"
	"strings"

	"github.com/mnemo-run/mnemo/internal/memory"
)

const (
	wrapperOverheadTokens = 10
	perMemoryTokens       = 15
)

// EstimateTokens approximates token count as ⌈chars/4⌉ (spec.md §4.10).
func EstimateTokens(s string) int {
	if len(s) == 0 {
		return 0
	}
	return (len(s) + 3) / 4
}

// Format renders memories, in the order supplied (already sorted by relevance), as an
// <mnemo-memories> XML block, stopping before the first memory that would push the
// cumulative token estimate over budgetTokens. Empty input, or a budget too small for even
// the wrapper, yields "".
func Format(memories []memory.RetrievedMemory, budgetTokens int) string {
	if len(memories) == 0 {
		return ""
	}

	used := wrapperOverheadTokens
	if used > budgetTokens {
		return ""
	}

	var body strings.Builder
	included := 0
	for _, rm := range memories {
		block := formatOne(rm.Memory)
		// perMemoryTokens is the reserve for the <memory> tags around the content.
		cost := EstimateTokens(escapeContent(rm.Memory.Content)) + perMemoryTokens
		if used+cost > budgetTokens {
			break
		}
		used += cost
		body.WriteString(block)
		included++
	}

	if included == 0 {
		return ""
	}

	var out strings.Builder
	out.WriteString("<mnemo-memories>\n")
	out.WriteString(body.String())
	out.WriteString("</mnemo-memories>")
	return out.String()
}

func formatOne(m *memory.Memory) string {
	return fmt.Sprintf(
		"<memory timestamp=%q type=%q>\n  %s\n</memory>\n",
		m.CreatedAt.Format("2006-01-02"),
		string(m.MemoryType),
		escapeContent(m.Content),
	)
}

// escapeContent guards only against premature block closure (spec.md §6.2): content is
// otherwise carried verbatim, UTF-8, no HTML entity escaping.
func escapeContent(s string) string {
	return strings.ReplaceAll(s, "</memory>", `<\/memory>`)
}
