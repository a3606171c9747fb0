package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/JaimeStill/covenant/internal/corpus"
	"github.com/JaimeStill/covenant/pkg/tokenize"
)

// DefaultPassages is the number of evidence passages an extractive answer
// quotes from.
const DefaultPassages = 3

// Extractive answers by quoting, from each of the top passages, the
// sentence sharing the most terms with the query. It is deterministic and
// needs no model.
type Extractive struct {
	passages int
}

// NewExtractive creates an Extractive generator quoting from at most
// passages passages. passages <= 0 uses DefaultPassages.
func NewExtractive(passages int) *Extractive {
	if passages <= 0 {
		passages = DefaultPassages
	}
	return &Extractive{passages: passages}
}

type quote struct {
	sentence  string
	citations []int
}

func (e *Extractive) Generate(ctx context.Context, query string, evidence []corpus.Evidence) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	terms := tokenize.Set(query)
	var quotes []*quote
	bySentence := make(map[string]*quote)

	for i, ev := range evidence[:min(len(evidence), e.passages)] {
		s := bestSentence(ev.Text, terms)
		if s == "" {
			continue
		}
		if q, ok := bySentence[s]; ok {
			q.citations = append(q.citations, i+1)
			continue
		}
		q := &quote{sentence: s, citations: []int{i + 1}}
		bySentence[s] = q
		quotes = append(quotes, q)
	}

	parts := make([]string, len(quotes))
	for i, q := range quotes {
		parts[i] = cite(q.sentence, q.citations)
	}
	return strings.Join(parts, " "), nil
}

// bestSentence returns the sentence of text sharing the most terms with
// the query, preferring earlier sentences on ties.
func bestSentence(text string, terms map[string]struct{}) string {
	sentences := tokenize.Sentences(text)
	if len(sentences) == 0 {
		return ""
	}

	best, score := sentences[0], 0
	for _, s := range sentences {
		n := 0
		for t := range tokenize.Set(s) {
			if _, ok := terms[t]; ok {
				n++
			}
		}
		if n > score {
			best, score = s, n
		}
	}
	return best
}

// cite places citations before the sentence's closing punctuation.
func cite(sentence string, citations []int) string {
	body := strings.TrimRight(sentence, ".!?;: ")
	end := "."
	if strings.HasSuffix(sentence, "?") || strings.HasSuffix(sentence, "!") {
		end = sentence[len(sentence)-1:]
	}

	var b strings.Builder
	b.WriteString(body)
	b.WriteByte(' ')
	for _, c := range citations {
		fmt.Fprintf(&b, "[%d]", c)
	}
	b.WriteString(end)
	return b.String()
}
