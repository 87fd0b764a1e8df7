package verification

import (
	"strings"
	"unicode"

	prose "github.com/jdkato/prose/v2"
)

// DescriptionQuality scores the level of detail in a report description.
//
// Deliberately a crude lexical heuristic: length plus hits against the
// configured detail-keyword vocabulary. Keeping it keyword-list-driven
// makes every score auditable and the vocabulary replaceable through
// configuration.
func (s *Scorer) DescriptionQuality(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0.0
	}

	wordCount := countWords(text)
	keywordMatches := countKeywordMatches(text, s.cfg.DetailKeywords)

	score := 0.5

	if wordCount >= 20 {
		score += 0.2
	} else if wordCount >= 10 {
		score += 0.1
	}

	if keywordMatches >= 3 {
		score += 0.3
	} else if keywordMatches >= 1 {
		score += 0.15
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// countWords tokenizes the text and counts tokens that carry at least one
// letter or digit, so punctuation does not inflate the count. Falls back
// to whitespace splitting if the tokenizer rejects the input.
func countWords(text string) int {
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return len(strings.Fields(text))
	}

	count := 0
	for _, tok := range doc.Tokens() {
		if isWord(tok.Text) {
			count++
		}
	}
	return count
}

func isWord(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// Matching is case-insensitive substring, per the configured vocabulary.
func countKeywordMatches(text string, keywords []string) int {
	lower := strings.ToLower(text)
	matches := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			matches++
		}
	}
	return matches
}
