// Package retrieve turns a free-text question into ranked, deduplicated
// evidence drawn from the corpus through the search index.
package retrieve

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/corpus"
	"github.com/JaimeStill/covenant/internal/index"
	"github.com/JaimeStill/covenant/pkg/tokenize"
)

// ErrEmptyQuery reports a query with no searchable tokens.
var ErrEmptyQuery = errors.New("query has no searchable terms")

// Defaults.
const (
	DefaultTopK    = 5
	DefaultFloor   = 10.0
	DefaultOverlap = 0.9
	DefaultBoost   = 1.0
)

// Config tunes retrieval.
type Config struct {
	// TopK is used when a call passes topK <= 0.
	TopK int
	// Floor is the minimum relevance, on the 0-100 scale, a result needs.
	Floor float64
	// Overlap is the token overlap at which two chunks of one contract are
	// treated as duplicates.
	Overlap float64
	// Boost scales a candidate whose chunk backs a clause titled with a
	// query term by 1 + Boost*confidence/100.
	Boost float64
}

func (c *Config) defaults() {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.Floor <= 0 {
		c.Floor = DefaultFloor
	}
	if c.Overlap <= 0 || c.Overlap > 1 {
		c.Overlap = DefaultOverlap
	}
	if c.Boost <= 0 {
		c.Boost = DefaultBoost
	}
}

// Corpus exposes the corpus snapshot that resolves index candidates.
// *corpus.Store satisfies Corpus.
type Corpus interface {
	Snapshot() *corpus.Snapshot
}

// Retriever ranks corpus chunks for a query.
type Retriever struct {
	index  *index.Manager
	corpus Corpus
	cfg    Config
	logger *slog.Logger
}

// New creates a Retriever.
func New(idx *index.Manager, c Corpus, cfg Config, logger *slog.Logger) *Retriever {
	cfg.defaults()
	return &Retriever{
		index:  idx,
		corpus: c,
		cfg:    cfg,
		logger: logger.With("system", "retrieve"),
	}
}

type hit struct {
	cand   index.Candidate
	chunk  corpus.Chunk
	name   string
	tokens map[string]struct{}
}

// Retrieve returns at most topK evidence chunks for query, ordered by
// relevance descending, then position, then chunk id. An empty result
// means no chunk cleared the relevance floor.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, scope index.Scope) ([]corpus.Evidence, error) {
	terms := tokenize.QueryTerms(query)
	if len(terms) == 0 {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = r.cfg.TopK
	}

	hits, err := r.search(ctx, query, terms, scope)
	if err != nil {
		return nil, err
	}

	hits = r.dedupe(hits)
	out := r.rank(hits)
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (r *Retriever) search(ctx context.Context, query string, terms []string, scope index.Scope) ([]hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := r.index.Query(ctx, query, terms, scope)
	cands := r.index.Index().Search(q)
	hits := r.resolve(ctx, cands, terms)
	if len(cands) == 0 || len(hits) > 0 {
		return hits, nil
	}

	r.logger.WarnContext(ctx, "no candidate resolved, rebuilding index", "error", index.ErrIndexCorrupt, "candidates", len(cands))
	ix, err := r.index.Rebuild(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: rebuild failed: %w", index.ErrIndexCorrupt, err)
	}
	return r.resolve(ctx, ix.Search(q), terms), nil
}

// resolve maps candidates onto the current corpus snapshot, skipping
// chunks the corpus no longer holds, and applies the clause boost. Hits
// come back ordered the way the index orders candidates.
func (r *Retriever) resolve(ctx context.Context, cands []index.Candidate, terms []string) []hit {
	snap := r.corpus.Snapshot()
	hits := make([]hit, 0, len(cands))
	for _, c := range cands {
		chunk, name, ok := snap.Chunk(c.ChunkID)
		if !ok {
			r.logger.WarnContext(ctx, "skipping unresolvable candidate", "chunk", c.ChunkID, "contract", c.ContractID)
			continue
		}
		c.Score *= 1 + r.cfg.Boost*ClauseMatch(snap.ChunkClauses(c.ChunkID), terms)/100
		hits = append(hits, hit{cand: c, chunk: chunk, name: name})
	}

	slices.SortStableFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(b.cand.Score, a.cand.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.cand.Position, b.cand.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.cand.ChunkID.String(), b.cand.ChunkID.String())
	})
	return hits
}

// ClauseMatch returns the highest confidence among clauses whose title
// shares a term with the query, or 0 when none does.
func ClauseMatch(clauses []corpus.Clause, terms []string) float64 {
	best := 0.0
	for _, cl := range clauses {
		for _, t := range tokenize.Terms(cl.Title) {
			if slices.Contains(terms, t) {
				best = math.Max(best, cl.Confidence)
				break
			}
		}
	}
	return best
}

// dedupe collapses chunks of one contract whose token sets overlap at or
// above the configured threshold, keeping the higher ranked chunk.
func (r *Retriever) dedupe(hits []hit) []hit {
	kept := make([]hit, 0, len(hits))
	byContract := make(map[uuid.UUID][]int)

	for _, h := range hits {
		h.tokens = tokenize.Set(h.chunk.Text)
		duplicate := false
		for _, i := range byContract[h.chunk.ContractID] {
			if tokenize.Overlap(h.tokens, kept[i].tokens) >= r.cfg.Overlap {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		byContract[h.chunk.ContractID] = append(byContract[h.chunk.ContractID], len(kept))
		kept = append(kept, h)
	}
	return kept
}

// rank normalizes scores against the best candidate, applies the floor,
// and orders the result.
func (r *Retriever) rank(hits []hit) []corpus.Evidence {
	best := 0.0
	for _, h := range hits {
		best = math.Max(best, h.cand.Score)
	}
	if best <= 0 {
		return []corpus.Evidence{}
	}

	out := make([]corpus.Evidence, 0, len(hits))
	for _, h := range hits {
		rel := Relevance(h.cand.Score, best)
		if rel < r.cfg.Floor {
			continue
		}
		out = append(out, corpus.Evidence{
			ChunkID:      h.chunk.ID,
			ContractID:   h.chunk.ContractID,
			ContractName: h.name,
			Text:         h.chunk.Text,
			Page:         h.chunk.Page,
			Position:     h.chunk.Position,
			Relevance:    rel,
		})
	}

	slices.SortFunc(out, func(a, b corpus.Evidence) int {
		if c := cmp.Compare(b.Relevance, a.Relevance); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ChunkID.String(), b.ChunkID.String())
	})
	return out
}

// Relevance maps a raw score onto 0-100 relative to the best score,
// rounded to one decimal.
func Relevance(score, best float64) float64 {
	if best <= 0 || score <= 0 {
		return 0
	}
	return math.Round(math.Min(score/best, 1)*1000) / 10
}
