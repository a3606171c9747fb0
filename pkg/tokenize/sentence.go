package tokenize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var abbreviations = map[string]struct{}{
	"inc": {}, "ltd": {}, "llc": {}, "corp": {}, "co": {}, "no": {}, "sec": {}, "art": {},
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "st": {}, "vs": {}, "etc": {}, "e.g": {}, "i.e": {},
}

const closers = `"')]’”`

// SentenceEnds returns the byte offsets immediately after each sentence
// terminator in text. A terminator is '.', '!' or '?' (plus any closing quote
// or bracket) followed by whitespace or end of text, or a blank line.
// Periods ending common abbreviations are not terminators.
func SentenceEnds(text string) []int {
	var ends []int
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		next := i + size

		switch {
		case r == '.' || r == '!' || r == '?':
			end := next
			for end < len(text) {
				cr, csize := utf8.DecodeRuneInString(text[end:])
				if !strings.ContainsRune(closers, cr) {
					break
				}
				end += csize
			}
			if end < len(text) {
				nr, _ := utf8.DecodeRuneInString(text[end:])
				if !unicode.IsSpace(nr) {
					i = next
					continue
				}
			}
			if r == '.' && isAbbreviation(text[:i]) {
				i = next
				continue
			}
			ends = append(ends, end)
			i = end
			continue
		case r == '\n' && next < len(text) && text[next] == '\n':
			if len(ends) == 0 || ends[len(ends)-1] < i {
				ends = append(ends, i)
			}
		}
		i = next
	}
	return ends
}

// Sentences splits text into trimmed, non-empty sentences.
func Sentences(text string) []string {
	var out []string
	start := 0
	for _, end := range append(SentenceEnds(text), len(text)) {
		if end <= start {
			continue
		}
		if s := strings.TrimSpace(text[start:end]); s != "" {
			out = append(out, s)
		}
		start = end
	}
	return out
}

func isAbbreviation(before string) bool {
	idx := strings.LastIndexFunc(before, func(r rune) bool {
		return unicode.IsSpace(r) || r == '('
	})
	if idx >= 0 {
		_, size := utf8.DecodeRuneInString(before[idx:])
		idx += size
	} else {
		idx = 0
	}
	word := strings.ToLower(before[idx:])
	if word == "" {
		return false
	}
	if utf8.RuneCountInString(word) == 1 && unicode.IsLetter([]rune(word)[0]) {
		return true
	}
	_, ok := abbreviations[word]
	return ok
}
