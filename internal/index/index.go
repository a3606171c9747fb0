// Package index maintains the searchable projection of the corpus: an
// immutable BM25 inverted index built from per-contract segments, with an
// optional vector similarity blend. The index is rebuildable from the corpus
// alone and is never the source of truth.
package index

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/corpus"
	"github.com/JaimeStill/covenant/pkg/tokenize"
)

// BM25 parameters.
const (
	K1 = 1.2
	B  = 0.75
)

// MinSimilarity is the cosine similarity a chunk needs to be returned on
// the vector path alone, without any matching term.
const MinSimilarity = 0.2

type document struct {
	chunkID    uuid.UUID
	contractID uuid.UUID
	position   int
	length     int
	terms      map[string]int
	vector     []float64
}

// Segment holds the indexed form of one contract's chunks.
type Segment struct {
	contractID  uuid.UUID
	fingerprint string
	docs        []document
}

// NewSegment tokenizes chunks into term-frequency documents. vectors, when
// non-nil, must align with chunks.
func NewSegment(contractID uuid.UUID, chunks []corpus.Chunk, vectors [][]float64) *Segment {
	seg := &Segment{
		contractID:  contractID,
		fingerprint: Fingerprint(chunks),
		docs:        make([]document, len(chunks)),
	}
	for i, c := range chunks {
		terms := tokenize.Terms(c.Text)
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		d := document{
			chunkID:    c.ID,
			contractID: contractID,
			position:   c.Position,
			length:     len(terms),
			terms:      tf,
		}
		if i < len(vectors) {
			d.vector = vectors[i]
		}
		seg.docs[i] = d
	}
	return seg
}

// ContractID returns the contract the segment indexes.
func (s *Segment) ContractID() uuid.UUID { return s.contractID }

// Fingerprint identifies the chunk set the segment was built from.
func (s *Segment) Fingerprint() string { return s.fingerprint }

// Len returns the number of indexed chunks.
func (s *Segment) Len() int { return len(s.docs) }

// HasVectors reports whether every chunk carries an embedding.
func (s *Segment) HasVectors() bool {
	for _, d := range s.docs {
		if d.vector == nil {
			return false
		}
	}
	return len(s.docs) > 0
}

func (s *Segment) vectors() [][]float64 {
	out := make([][]float64, len(s.docs))
	for i, d := range s.docs {
		out[i] = d.vector
	}
	return out
}

// Fingerprint hashes the ordered chunk ids. Chunk ids derive from content,
// so equal fingerprints mean equal chunk sets.
func Fingerprint(chunks []corpus.Chunk) string {
	h := sha256.New()
	for _, c := range chunks {
		h.Write(c.ID[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

type posting struct {
	doc int
	tf  int
}

// Index is an immutable inverted index over a set of segments.
type Index struct {
	segments map[uuid.UUID]*Segment
	docs     []*document
	byChunk  map[uuid.UUID]int
	postings map[string][]posting
	avgLen   float64
}

// Build merges segments into an index. A later segment for the same
// contract replaces an earlier one.
func Build(segments ...*Segment) *Index {
	bySeg := make(map[uuid.UUID]*Segment, len(segments))
	for _, s := range segments {
		if s != nil {
			bySeg[s.contractID] = s
		}
	}
	return build(bySeg)
}

func build(segments map[uuid.UUID]*Segment) *Index {
	ix := &Index{
		segments: segments,
		byChunk:  make(map[uuid.UUID]int),
		postings: make(map[string][]posting),
	}

	ids := slices.SortedFunc(maps.Keys(segments), func(a, b uuid.UUID) int {
		return cmp.Compare(a.String(), b.String())
	})

	total := 0
	for _, id := range ids {
		for i := range segments[id].docs {
			d := &segments[id].docs[i]
			n := len(ix.docs)
			ix.docs = append(ix.docs, d)
			ix.byChunk[d.chunkID] = n
			total += d.length
			for term, tf := range d.terms {
				ix.postings[term] = append(ix.postings[term], posting{doc: n, tf: tf})
			}
		}
	}
	if len(ix.docs) > 0 {
		ix.avgLen = float64(total) / float64(len(ix.docs))
	}
	return ix
}

// Empty returns an index with no segments.
func Empty() *Index {
	return build(map[uuid.UUID]*Segment{})
}

// With returns a copy of the index in which seg replaces any segment for
// the same contract.
func (ix *Index) With(seg *Segment) *Index {
	next := maps.Clone(ix.segments)
	next[seg.contractID] = seg
	return build(next)
}

// Without returns a copy of the index without the contract's segment.
func (ix *Index) Without(contractID uuid.UUID) *Index {
	if _, ok := ix.segments[contractID]; !ok {
		return ix
	}
	next := maps.Clone(ix.segments)
	delete(next, contractID)
	return build(next)
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.docs) }

// Contracts returns the number of indexed contracts.
func (ix *Index) Contracts() int { return len(ix.segments) }

// Segment returns the contract's segment.
func (ix *Index) Segment(contractID uuid.UUID) (*Segment, bool) {
	s, ok := ix.segments[contractID]
	return s, ok
}

// Fingerprints returns the fingerprint of every indexed contract.
func (ix *Index) Fingerprints() map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(ix.segments))
	for id, s := range ix.segments {
		out[id] = s.fingerprint
	}
	return out
}

// Scope restricts a search to a set of contracts. A nil Scope is unrestricted.
type Scope map[uuid.UUID]struct{}

// NewScope creates a Scope over ids, or nil when ids is empty.
func NewScope(ids ...uuid.UUID) Scope {
	if len(ids) == 0 {
		return nil
	}
	s := make(Scope, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Scope) allows(id uuid.UUID) bool {
	if s == nil {
		return true
	}
	_, ok := s[id]
	return ok
}

// Query describes a search. Terms drive BM25 scoring. When Vector is set
// and Weight is positive the score blends normalized BM25 with cosine
// similarity as (1-Weight)*bm25/max + Weight*cosine.
type Query struct {
	Terms  []string
	Vector []float64
	Weight float64
	Scope  Scope
}

// Candidate is a scored chunk reference.
type Candidate struct {
	ChunkID    uuid.UUID
	ContractID uuid.UUID
	Position   int
	Score      float64
}

// Search scores every chunk matching the query and returns candidates
// ordered by score descending, position ascending, then chunk id.
func (ix *Index) Search(q Query) []Candidate {
	n := float64(len(ix.docs))
	if n == 0 {
		return nil
	}

	lex := make(map[int]float64)
	for _, term := range dedupe(q.Terms) {
		plist := ix.postings[term]
		if len(plist) == 0 {
			continue
		}
		df := float64(len(plist))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for _, p := range plist {
			d := ix.docs[p.doc]
			if !q.Scope.allows(d.contractID) {
				continue
			}
			tf := float64(p.tf)
			norm := 1 - B + B*float64(d.length)/ix.avgLen
			lex[p.doc] += idf * (tf * (K1 + 1)) / (tf + K1*norm)
		}
	}

	scores := lex
	if q.Weight > 0 && len(q.Vector) > 0 {
		scores = ix.blend(lex, q)
	}

	out := make([]Candidate, 0, len(scores))
	for i, s := range scores {
		if s <= 0 {
			continue
		}
		d := ix.docs[i]
		out = append(out, Candidate{
			ChunkID:    d.chunkID,
			ContractID: d.contractID,
			Position:   d.position,
			Score:      s,
		})
	}

	slices.SortFunc(out, func(a, b Candidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ChunkID.String(), b.ChunkID.String())
	})
	return out
}

func (ix *Index) blend(lex map[int]float64, q Query) map[int]float64 {
	w := math.Min(q.Weight, 1)

	maxLex := 0.0
	for _, s := range lex {
		maxLex = math.Max(maxLex, s)
	}

	out := make(map[int]float64, len(lex))
	for i, d := range ix.docs {
		if !q.Scope.allows(d.contractID) {
			continue
		}
		l := 0.0
		if maxLex > 0 {
			l = lex[i] / maxLex
		}
		cos := 0.0
		if d.vector != nil {
			cos = Cosine(q.Vector, d.vector)
		}
		if l == 0 && cos < MinSimilarity {
			continue
		}
		out[i] = (1-w)*l + w*math.Max(cos, 0)
	}
	return out
}

// Cosine returns the cosine similarity of two vectors, or 0 when their
// dimensions differ or either is zero.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
