package router

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed data/lexicon.json
var lexiconFS embed.FS

// Lexicon is the word-list configuration the Router's heuristics run against, loaded once
// at startup. Grounded on daverage-tinyMem/internal/entity/regex.go's
// //go:embed symbols.json + LoadSymbolsConfig pattern.
type Lexicon struct {
	PositiveWords    []string `json:"positive_words"`
	NegativeWords    []string `json:"negative_words"`
	Stopwords        []string `json:"stopwords"`
	PersonTitles     []string `json:"person_titles"`
	OrgSuffixes      []string `json:"org_suffixes"`
	LocationSuffixes []string `json:"location_suffixes"`
	ProceduralHints  []string `json:"procedural_hints"`
	SemanticHints    []string `json:"semantic_hints"`
	EpisodicHints    []string `json:"episodic_hints"`

	positiveSet    map[string]struct{}
	negativeSet    map[string]struct{}
	stopwordSet    map[string]struct{}
	personTitleSet map[string]struct{}
	orgSuffixSet   map[string]struct{}
	locSuffixSet   map[string]struct{}
}

func LoadLexicon() (*Lexicon, error) {
	data, err := lexiconFS.ReadFile("data/lexicon.json")
	if err != nil {
		return nil, fmt.Errorf("router: read embedded lexicon: %w", err)
	}
	var lx Lexicon
	if err := json.Unmarshal(data, &lx); err != nil {
		return nil, fmt.Errorf("router: parse embedded lexicon: %w", err)
	}
	lx.positiveSet = toSet(lx.PositiveWords)
	lx.negativeSet = toSet(lx.NegativeWords)
	lx.stopwordSet = toSet(lx.Stopwords)
	lx.personTitleSet = toSet(lx.PersonTitles)
	lx.orgSuffixSet = toSet(lx.OrgSuffixes)
	lx.locSuffixSet = toSet(lx.LocationSuffixes)
	return &lx, nil
}

func toSet(words []string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}
