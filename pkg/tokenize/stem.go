package tokenize

import (
	"strings"
	"unicode"
)

type suffixRule struct {
	suffix      string
	replacement string
}

// Longest suffixes first; the first rule leaving a stem of at least
// minStem runes wins.
var suffixRules = []suffixRule{
	{"izations", ""}, {"ization", ""},
	{"ations", ""}, {"ation", ""},
	{"ments", ""}, {"ment", ""},
	{"ities", ""}, {"ity", ""},
	{"ings", ""}, {"ing", ""},
	{"ies", "y"}, {"ied", "y"},
	{"ives", ""}, {"ive", ""},
	{"ated", ""}, {"ates", ""}, {"ate", ""},
	{"ers", ""}, {"er", ""},
	{"ed", ""}, {"es", ""}, {"ly", ""},
	{"s", ""},
}

const minStem = 3

// Stem reduces an English word to a crude stem so that inflections such as
// "terminate", "terminated", and "termination" share one index term.
// Tokens containing digits are returned unchanged.
func Stem(w string) string {
	if len(w) <= minStem || strings.IndexFunc(w, unicode.IsDigit) >= 0 {
		return w
	}

	stem := w
	for _, r := range suffixRules {
		if !strings.HasSuffix(w, r.suffix) {
			continue
		}
		if r.suffix == "s" && (strings.HasSuffix(w, "ss") || strings.HasSuffix(w, "us") || strings.HasSuffix(w, "is")) {
			continue
		}
		candidate := w[:len(w)-len(r.suffix)] + r.replacement
		if len(candidate) < minStem {
			continue
		}
		stem = candidate
		break
	}

	if len(stem) > 5 && strings.HasSuffix(stem, "at") {
		stem = stem[:len(stem)-2]
	}
	if len(stem) > minStem && strings.HasSuffix(stem, "e") {
		stem = stem[:len(stem)-1]
	}
	return stem
}
