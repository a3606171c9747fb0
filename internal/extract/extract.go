// Package extract derives clauses and insights from contract chunks.
//
// Clause detection goes through the Classifier capability, so a rule-based
// classifier and a chat-model classifier are interchangeable. Accepted
// clauses then run through a fixed set of insight rules that flag risky
// terms and recommend changes, each citing the clauses that triggered it.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/covenant/internal/corpus"
)

// DefaultThreshold is the minimum confidence for a classification to be
// promoted to a clause.
const DefaultThreshold = 50.0

// ErrNoExtractableContent reports that no clause was found in a non-empty
// document. It accompanies a valid empty Result and is not fatal.
var ErrNoExtractableContent = errors.New("no extractable clauses found")

// Classification is a classifier's verdict on one chunk.
// Text is the clause wording; when empty the whole chunk is used.
type Classification struct {
	Title      string  `json:"title"`
	Confidence float64 `json:"confidence"`
	Text       string  `json:"text"`
}

// Classifier labels a chunk with at most one clause topic. The bool result
// is false when the chunk expresses no topic.
type Classifier interface {
	Classify(ctx context.Context, chunk corpus.Chunk) (Classification, bool, error)
}

// Result holds the clauses and insights derived from one contract.
type Result struct {
	Clauses  []corpus.Clause
	Insights []corpus.Insight
}

// Config tunes an Extractor.
type Config struct {
	Threshold float64
	Workers   int
}

// Extractor runs a Classifier over chunks and applies the insight rules.
type Extractor struct {
	classifier Classifier
	threshold  float64
	workers    int
	logger     *slog.Logger
}

// New creates an Extractor. Zero config values take their defaults.
func New(classifier Classifier, cfg Config, logger *slog.Logger) *Extractor {
	if cfg.Threshold <= 0 || cfg.Threshold > 100 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Extractor{
		classifier: classifier,
		threshold:  cfg.Threshold,
		workers:    cfg.Workers,
		logger:     logger.With("system", "extract"),
	}
}

// Extract classifies every chunk and derives insights from the accepted
// clauses. Clauses keep the source order of their chunks. A classifier
// error aborts extraction. When no clause is accepted the empty result is
// returned together with ErrNoExtractableContent.
func (e *Extractor) Extract(ctx context.Context, contractID uuid.UUID, chunks []corpus.Chunk) (Result, error) {
	verdicts := make([]*Classification, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, c := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, ok, err := e.classifier.Classify(gctx, c)
			if err != nil {
				return fmt.Errorf("classify chunk %d: %w", c.Position, err)
			}
			if ok {
				verdicts[i] = &v
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var clauses []corpus.Clause
	for i, v := range verdicts {
		if v == nil {
			continue
		}
		conf := clamp(v.Confidence)
		if conf < e.threshold {
			continue
		}

		c := chunks[i]
		text := v.Text
		if text == "" {
			text = c.Text
		}
		clauses = append(clauses, corpus.Clause{
			ID:         corpus.DerivedID(contractID, "clause", c.ID.String(), v.Title),
			ContractID: contractID,
			Title:      v.Title,
			Text:       text,
			Confidence: conf,
			ChunkIDs:   []uuid.UUID{c.ID},
		})
	}

	res := Result{
		Clauses:  clauses,
		Insights: Insights(contractID, clauses),
	}

	e.logger.DebugContext(
		ctx, "extraction complete",
		"contract", contractID,
		"chunks", len(chunks),
		"clauses", len(res.Clauses),
		"insights", len(res.Insights),
	)

	if len(clauses) == 0 && len(chunks) > 0 {
		return res, ErrNoExtractableContent
	}
	return res, nil
}

// clamp bounds a confidence to [0,100] with one decimal place.
func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(0, math.Min(100, v))
	return math.Round(v*10) / 10
}
