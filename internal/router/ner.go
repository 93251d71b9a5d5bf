package router

import (
	"strings"
	"unicode"

	"github.com/mnemo-run/mnemo/internal/memory"
)

// token is a single tokenizer output. isSubword marks a "##"-prefixed continuation piece,
// mirroring the subword-continuation convention spec.md §4.3 describes for BIO merging;
// the heuristic tokenizer below emits one only when the input itself contains a
// "##"-prefixed word, and mergeTags honors it.
type token struct {
	text      string
	isSubword bool
	isFirst   bool // first token of a sentence; capitalization there is not a signal.
}

func tokenize(text string) []token {
	var tokens []token
	var cur strings.Builder
	sentenceStart := true

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		word := cur.String()
		isSubword := strings.HasPrefix(word, "##")
		if isSubword {
			word = strings.TrimPrefix(word, "##")
		}
		tokens = append(tokens, token{text: word, isSubword: isSubword, isFirst: sentenceStart})
		sentenceStart = false
		cur.Reset()
	}

	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || r == '#':
			cur.WriteRune(r)
		case r == '.' || r == '!' || r == '?':
			flush()
			sentenceStart = true
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// bioTag is a per-token heuristic classification, mimicking the shape of a BIO-tagged
// token stream without requiring an actual NER model.
type bioTag struct {
	token      token
	label      memory.EntityLabel
	begin      bool
	confidence float64
}

// tagTokens assigns heuristic BIO-style tags: each capitalized, non-sentence-initial (or
// title-preceded) token begins its own entity, classified by neighboring title/suffix cues
// and by whether it sits in a run of such tokens; only "##" subword pieces continue the
// previous entity.
func tagTokens(tokens []token, lx *Lexicon) []bioTag {
	tags := make([]bioTag, len(tokens))
	inSpan := false

	for i, tok := range tokens {
		lower := strings.ToLower(tok.text)
		capitalized := isCapitalized(tok.text) && !tok.isFirst

		precededByTitle := i > 0 && isInSet(lx.personTitleSet, strings.ToLower(strings.TrimSuffix(tokens[i-1].text, ".")))
		followedByOrgSuffix := i+1 < len(tokens) && isInSet(lx.orgSuffixSet, strings.ToLower(tokens[i+1].text))
		followedByLocSuffix := i+1 < len(tokens) && isInSet(lx.locSuffixSet, strings.ToLower(tokens[i+1].text))
		nextCapitalized := i+1 < len(tokens) && isCapitalized(tokens[i+1].text) && !tokens[i+1].isFirst

		isEntityToken := capitalized || tok.isSubword || precededByTitle

		switch {
		case !isEntityToken:
			inSpan = false
			tags[i] = bioTag{token: tok}
			continue
		case followedByOrgSuffix:
			tags[i] = bioTag{token: tok, label: memory.Organization, begin: !inSpan || !tok.isSubword, confidence: 0.75}
		case followedByLocSuffix:
			tags[i] = bioTag{token: tok, label: memory.Location, begin: !inSpan || !tok.isSubword, confidence: 0.7}
		case precededByTitle:
			tags[i] = bioTag{token: tok, label: memory.Person, begin: true, confidence: 0.85}
		case inSpan || nextCapitalized:
			// A multi-word capitalized run without a title/suffix cue still reads as a
			// proper name (e.g. "John Smith"); a lone capitalized token does not.
			tags[i] = bioTag{token: tok, label: memory.Person, begin: !inSpan || !tok.isSubword, confidence: 0.55}
		default:
			tags[i] = bioTag{token: tok, label: memory.Misc, begin: !inSpan || !tok.isSubword, confidence: 0.5}
		}
		_ = lower
		inSpan = true
	}

	return tags
}

func isCapitalized(word string) bool {
	if word == "" {
		return false
	}
	r := []rune(word)[0]
	return unicode.IsUpper(r)
}

func isInSet(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

// mergeTags collapses adjacent same-label tags into single entities, concatenating
// subword continuations without spacing and averaging per-token confidence, per spec.md
// §4.3 step 1.
func mergeTags(tags []bioTag) []memory.Entity {
	var entities []memory.Entity
	var curText []string
	var curLabel memory.EntityLabel
	var curConfSum float64
	var curCount int

	flush := func() {
		if curCount == 0 {
			return
		}
		entities = append(entities, memory.Entity{
			Text:       strings.Join(curText, " "),
			Label:      curLabel,
			Confidence: curConfSum / float64(curCount),
		})
		curText = nil
		curConfSum = 0
		curCount = 0
	}

	for _, tag := range tags {
		if tag.label == "" {
			flush()
			continue
		}
		if tag.begin || tag.label != curLabel {
			flush()
			curLabel = tag.label
		}
		if tag.token.isSubword && len(curText) > 0 {
			curText[len(curText)-1] += tag.token.text
		} else {
			curText = append(curText, tag.token.text)
		}
		curConfSum += tag.confidence
		curCount++
	}
	flush()

	return entities
}

// extractEntities runs the tokenize -> tag -> merge pipeline over text.
func extractEntities(text string, lx *Lexicon) []memory.Entity {
	tokens := tokenize(text)
	tags := tagTokens(tokens, lx)
	return mergeTags(tags)
}
