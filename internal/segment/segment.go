// Package segment splits document text into page-anchored chunks sized for
// retrieval. Chunks are cut at sentence boundaries near a target length
// whenever one exists, and every chunk records the page on which it starts.
package segment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/JaimeStill/covenant/pkg/tokenize"
)

// ErrEmptyDocument indicates the document has no non-whitespace text.
var ErrEmptyDocument = errors.New("document contains no extractable text")

// Chunk is an unsaved span of document text. Offset is the byte offset of
// the first character of Text within the source document.
type Chunk struct {
	Page     int
	Position int
	Offset   int
	Text     string
}

// Options controls chunk sizing, measured in characters.
// A cut prefers the sentence boundary closest to Target within
// Target±Tolerance; chunks never exceed Max.
type Options struct {
	Target    int
	Min       int
	Max       int
	Tolerance float64
}

// DefaultOptions returns the standard sizing: 800 characters targeted,
// 500 to 1000 allowed, 20% tolerance around the target.
func DefaultOptions() Options {
	return Options{
		Target:    800,
		Min:       500,
		Max:       1000,
		Tolerance: 0.2,
	}
}

func (o Options) normalize() Options {
	d := DefaultOptions()
	if o.Target <= 0 {
		o.Target = d.Target
	}
	if o.Max <= 0 {
		o.Max = max(d.Max, o.Target)
	}
	if o.Max < o.Target {
		o.Max = o.Target
	}
	if o.Min <= 0 || o.Min > o.Target {
		o.Min = min(d.Min, o.Target)
	}
	if o.Tolerance <= 0 || o.Tolerance >= 1 {
		o.Tolerance = d.Tolerance
	}
	return o
}

// Segmenter splits text into chunks.
type Segmenter struct {
	opts Options
}

// New creates a Segmenter. Zero option values take their defaults.
func New(opts Options) *Segmenter {
	return &Segmenter{opts: opts.normalize()}
}

// Options returns the effective sizing options.
func (s *Segmenter) Options() Options {
	return s.opts
}

// Segment splits text into chunks in source order. pages holds the byte
// offset at which each page starts; a chunk takes the page of its first
// character. Returns ErrEmptyDocument when text is blank.
func (s *Segmenter) Segment(ctx context.Context, text string, pages []int) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	sp := newSpan(text)
	ends := sp.runeEnds(tokenize.SentenceEnds(text))

	var chunks []Chunk
	start := sp.skipSpace(0)
	for start < sp.len() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("segment: %w", err)
		}

		cut := s.cut(sp, ends, start)
		piece := strings.TrimSpace(sp.slice(start, cut))
		if piece != "" {
			offset := sp.byteAt(start)
			chunks = append(chunks, Chunk{
				Page:     pageOf(pages, offset),
				Position: len(chunks),
				Offset:   offset,
				Text:     piece,
			})
		}
		start = sp.skipSpace(cut)
	}

	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}
	return chunks, nil
}

func (s *Segmenter) cut(sp *span, ends []int, start int) int {
	if sp.len()-start <= s.opts.Max {
		return sp.len()
	}

	target := start + s.opts.Target
	limit := start + s.opts.Max
	lo := start + int(float64(s.opts.Target)*(1-s.opts.Tolerance))
	hi := min(start+int(float64(s.opts.Target)*(1+s.opts.Tolerance)), limit)

	if cut, ok := closestEnd(ends, lo, hi, target); ok {
		return cut
	}
	if cut, ok := lastEnd(ends, start+s.opts.Min, limit); ok {
		return cut
	}
	if cut, ok := sp.closestSpace(start+s.opts.Min, limit, target); ok {
		return cut
	}
	return limit
}

// closestEnd returns the sentence end in [lo, hi] nearest target, preferring
// the earlier of two equidistant ends.
func closestEnd(ends []int, lo, hi, target int) (int, bool) {
	i := sort.SearchInts(ends, lo)
	best, found := 0, false
	for ; i < len(ends) && ends[i] <= hi; i++ {
		if !found || abs(ends[i]-target) < abs(best-target) {
			best, found = ends[i], true
		}
	}
	return best, found
}

func lastEnd(ends []int, lo, hi int) (int, bool) {
	i := sort.SearchInts(ends, hi+1) - 1
	if i >= 0 && ends[i] >= lo {
		return ends[i], true
	}
	return 0, false
}

func pageOf(pages []int, offset int) int {
	return max(sort.SearchInts(pages, offset+1), 1)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// span indexes text by rune so sizes are measured in characters while
// slicing stays on byte offsets.
type span struct {
	text    string
	offsets []int
	runes   []rune
}

func newSpan(text string) *span {
	n := utf8.RuneCountInString(text)
	sp := &span{
		text:    text,
		offsets: make([]int, 0, n+1),
		runes:   make([]rune, 0, n),
	}
	for i, r := range text {
		sp.offsets = append(sp.offsets, i)
		sp.runes = append(sp.runes, r)
	}
	sp.offsets = append(sp.offsets, len(text))
	return sp
}

func (sp *span) len() int {
	return len(sp.runes)
}

func (sp *span) byteAt(i int) int {
	return sp.offsets[i]
}

func (sp *span) slice(from, to int) string {
	return sp.text[sp.offsets[from]:sp.offsets[to]]
}

func (sp *span) skipSpace(i int) int {
	for i < len(sp.runes) && unicode.IsSpace(sp.runes[i]) {
		i++
	}
	return i
}

// runeEnds converts byte offsets to rune indices.
func (sp *span) runeEnds(byteEnds []int) []int {
	out := make([]int, 0, len(byteEnds))
	for _, b := range byteEnds {
		out = append(out, sort.SearchInts(sp.offsets, b))
	}
	return out
}

func (sp *span) closestSpace(lo, hi, target int) (int, bool) {
	hi = min(hi, len(sp.runes)-1)
	for d := 0; target-d >= lo || target+d <= hi; d++ {
		if i := target - d; i >= lo && i <= hi && unicode.IsSpace(sp.runes[i]) {
			return i, true
		}
		if i := target + d; i >= lo && i <= hi && unicode.IsSpace(sp.runes[i]) {
			return i, true
		}
	}
	return 0, false
}
