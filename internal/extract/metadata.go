package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JaimeStill/covenant/internal/corpus"
)

// DefaultRenewalWindow is the number of days before expiry in which a
// contract is considered due for renewal.
const DefaultRenewalWindow = 90

// Metadata is the contract-level information read from document text.
type Metadata struct {
	Name          string
	Parties       []string
	EffectiveDate *time.Time
	ExpiryDate    time.Time
	// ExpiryInferred is true when no explicit expiry or term was found and
	// the default term was applied.
	ExpiryInferred bool
}

// MetadataOptions tunes metadata derivation.
type MetadataOptions struct {
	// DefaultTerm applies when the document states neither an expiry date
	// nor a term. Zero means one year.
	DefaultTerm time.Duration
}

const (
	monthNames = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`
	ordinal    = `(?:st|nd|rd|th)?`
)

var (
	datePattern = regexp.MustCompile(`(?i)\b(?:` +
		monthNames + `\.?\s+\d{1,2}` + ordinal + `,?\s+\d{4}` +
		`|\d{1,2}` + ordinal + `\s+(?:day\s+of\s+)?` + monthNames + `,?\s+\d{4}` +
		`|\d{4}-\d{2}-\d{2}` +
		`|\d{1,2}/\d{1,2}/\d{4})\b`)

	partiesPattern = regexp.MustCompile(
		`(?is)\bbetween\s+(.{2,120}?)\s*(?:\([^)]{0,80}\)\s*)?,?\s+and\s+(.{2,120}?)\s*(?:\(|,|;|\.\s|\.$|\n)`)

	expiryCue    = regexp.MustCompile(`(?i)\b(?:expir\w*|terminat\w*\s+on|end\w*\s+on|until|through|ending)\W*(?:date\W*)?(?:is\W*|shall\s+be\W*)?(?:on\W*)?(?:the\W*)?$`)
	effectiveCue = regexp.MustCompile(`(?i)\b(?:effective|commenc\w*|dated|entered\s+into|as\s+of|start\w*)\W*(?:date\W*)?(?:on\W*)?(?:of\W*)?(?:is\W*)?$`)

	termPattern = regexp.MustCompile(
		`(?i)\b(?:term|period)\s+of\s+(?:(\d+)|([a-z]+))\s*(?:\((\d+)\)\s*)?(years?|months?)\b`)

	whitespace    = regexp.MustCompile(`\s+`)
	ordinalSuffix = regexp.MustCompile(`(\d)(?:st|nd|rd|th)\b`)
)

var termWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "twelve": 12,
	"eighteen": 18, "twenty-four": 24, "thirty-six": 36,
}

var dateLayouts = []string{
	"January 2 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2006-01-02",
	"1/2/2006",
}

// DeriveMetadata reads parties and dates from text. The contract name is
// the uploaded filename. Expiry comes from an explicit expiry date, else the
// effective date (or upload time) plus a stated term, else the upload time
// plus the default term.
func DeriveMetadata(text, filename string, uploadedAt time.Time, opts MetadataOptions) Metadata {
	if opts.DefaultTerm <= 0 {
		opts.DefaultTerm = 365 * 24 * time.Hour
	}

	m := Metadata{
		Name:    strings.TrimSpace(filename),
		Parties: Parties(text),
	}
	if m.Name == "" {
		m.Name = "Untitled contract"
	}

	expiry, effective := scanDates(text)
	m.EffectiveDate = effective

	switch {
	case expiry != nil:
		m.ExpiryDate = *expiry
	default:
		base := uploadedAt
		if effective != nil {
			base = *effective
		}
		if years, months, ok := Term(text); ok {
			m.ExpiryDate = base.AddDate(years, months, 0)
		} else {
			m.ExpiryDate = uploadedAt.Add(opts.DefaultTerm)
			m.ExpiryInferred = true
		}
	}

	m.ExpiryDate = m.ExpiryDate.UTC()
	return m
}

// Parties returns the two parties named in the first "between X and Y"
// phrase, or nil.
func Parties(text string) []string {
	match := partiesPattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}

	var out []string
	for _, p := range match[1:] {
		if p = cleanParty(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) != 2 {
		return nil
	}
	return out
}

func cleanParty(p string) string {
	p = whitespace.ReplaceAllString(p, " ")
	p = strings.Trim(p, " ,;:\"'“”")
	p = strings.TrimPrefix(p, "the ")
	if i := strings.Index(strings.ToLower(p), ", a "); i > 0 {
		p = p[:i]
	}
	return strings.TrimSpace(p)
}

// Term returns the duration stated as "term of N years|months".
func Term(text string) (years, months int, ok bool) {
	m := termPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}

	n := 0
	switch {
	case m[3] != "":
		n, _ = strconv.Atoi(m[3])
	case m[1] != "":
		n, _ = strconv.Atoi(m[1])
	default:
		n = termWords[strings.ToLower(m[2])]
	}
	if n <= 0 {
		return 0, 0, false
	}

	if strings.HasPrefix(strings.ToLower(m[4]), "year") {
		return n, 0, true
	}
	return 0, n, true
}

// scanDates classifies each date in text by the cue that precedes it.
// The first expiry and the first effective date found win.
func scanDates(text string) (expiry, effective *time.Time) {
	for _, loc := range datePattern.FindAllStringIndex(text, -1) {
		d, ok := ParseDate(text[loc[0]:loc[1]])
		if !ok {
			continue
		}
		before := text[max(0, loc[0]-60):loc[0]]
		switch {
		case expiry == nil && expiryCue.MatchString(before):
			expiry = &d
		case effective == nil && effectiveCue.MatchString(before):
			effective = &d
		}
	}
	return expiry, effective
}

// ParseDate parses the date formats commonly written in contracts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(",", " ", ".", " ", "day of ", "").Replace(s)
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	s = whitespace.ReplaceAllString(s, " ")
	s = strings.Replace(s, "sept ", "sep ", 1)

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, titleMonth(s)); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// titleMonth capitalises month words so time.Parse accepts them.
func titleMonth(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w != "" && w[0] >= 'a' && w[0] <= 'z' {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Status places an expiry date relative to now: expired when it is not
// after now, due for renewal when it falls before the end of the window,
// active otherwise.
func Status(expiry, now time.Time, windowDays int) corpus.Status {
	if windowDays <= 0 {
		windowDays = DefaultRenewalWindow
	}
	switch {
	case !expiry.After(now):
		return corpus.StatusExpired
	case expiry.Before(now.AddDate(0, 0, windowDays)):
		return corpus.StatusRenewalDue
	}
	return corpus.StatusActive
}
