// Package tokenize provides the text normalization shared by indexing, retrieval,
// and answer composition: lowercase word tokens, stopword filtering, a light
// suffix stemmer, sentence spans, and token-set overlap.
package tokenize

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at",
		"by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this",
		"that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than",
		"so", "such", "into", "about", "between", "through", "during", "before", "after", "above",
		"below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should",
		"now", "what", "which", "who", "whom", "how", "when", "where", "why", "do", "does", "did",
		"has", "have", "had", "any", "all", "our", "we", "you", "your", "i", "me", "my", "there",
		"their", "they", "them", "he", "she", "his", "her", "not", "no", "shall", "may", "each",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// Words returns the lowercase word tokens of s with punctuation stripped.
// Possessive suffixes are dropped ("party's" becomes "party").
func Words(s string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(s), -1)
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimSuffix(strings.TrimSuffix(t, "'s"), "’s")
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Terms returns the stemmed, stopword-filtered index terms of s.
func Terms(s string) []string {
	words := Words(s)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if IsStopword(w) {
			continue
		}
		out = append(out, Stem(w))
	}
	return out
}

// QueryTerms normalizes a free-text query. Stopwords are dropped unless that
// would leave nothing, in which case the stemmed raw words are returned.
// An empty result means the query has no tokens at all.
func QueryTerms(s string) []string {
	words := Words(s)
	if len(words) == 0 {
		return nil
	}

	terms := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	add := func(t string) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}

	for _, w := range words {
		if !IsStopword(w) {
			add(Stem(w))
		}
	}
	if len(terms) == 0 {
		for _, w := range words {
			add(Stem(w))
		}
	}
	return terms
}

// IsStopword reports whether w is a lowercase stopword.
func IsStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}

// Set returns the distinct terms of s.
func Set(s string) map[string]struct{} {
	terms := Terms(s)
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[t] = struct{}{}
	}
	return set
}

// Overlap returns the overlap coefficient |A∩B| / min(|A|,|B|) of two term sets.
// Two empty sets overlap completely; one empty set does not overlap at all.
func Overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for t := range small {
		if _, ok := large[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}
