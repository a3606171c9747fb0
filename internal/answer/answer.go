// Package answer composes grounded answers from retrieved evidence. Every
// sentence of an answer cites at least one evidence passage by its 1-based
// position as [n].
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JaimeStill/covenant/internal/corpus"
	"github.com/JaimeStill/covenant/pkg/tokenize"
)

// InsufficientEvidence is the reply given when no evidence was retrieved.
const InsufficientEvidence = "Insufficient evidence: no passage in the contract corpus supports an answer to this question."

// DefaultTimeout bounds answer generation.
const DefaultTimeout = 10 * time.Second

// ErrTimeout reports that generation did not finish in time.
var ErrTimeout = errors.New("answer generation timed out")

// Generator drafts an answer from evidence. Drafts are grounded by the
// Answerer before they are returned.
type Generator interface {
	Generate(ctx context.Context, query string, evidence []corpus.Evidence) (string, error)
}

// Answerer bounds a Generator with a timeout and filters its output down
// to cited sentences, falling back to an extractive answer when nothing
// grounded remains.
type Answerer struct {
	gen      Generator
	fallback *Extractive
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates an Answerer. A nil gen answers extractively.
func New(gen Generator, timeout time.Duration, logger *slog.Logger) *Answerer {
	fallback := NewExtractive(0)
	if gen == nil {
		gen = fallback
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Answerer{
		gen:      gen,
		fallback: fallback,
		timeout:  timeout,
		logger:   logger.With("system", "answer"),
	}
}

type draft struct {
	text string
	err  error
}

// Answer returns a grounded answer to query. Empty evidence yields
// InsufficientEvidence without consulting the generator.
func (a *Answerer) Answer(ctx context.Context, query string, evidence []corpus.Evidence) (string, error) {
	if len(evidence) == 0 {
		return InsufficientEvidence, nil
	}

	gctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan draft, 1)
	go func() {
		text, err := a.gen.Generate(gctx, query, evidence)
		done <- draft{text: text, err: err}
	}()

	var d draft
	select {
	case <-gctx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w after %s", ErrTimeout, a.timeout)
	case d = <-done:
	}

	if d.err != nil {
		if errors.Is(d.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%w after %s", ErrTimeout, a.timeout)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("generate answer: %w", d.err)
	}

	if grounded := Ground(d.text, len(evidence)); grounded != "" {
		return grounded, nil
	}

	a.logger.WarnContext(ctx, "generated answer had no grounded sentence, answering extractively")
	text, err := a.fallback.Generate(ctx, query, evidence)
	if err != nil {
		return "", err
	}
	return Ground(text, len(evidence)), nil
}

var (
	citationPattern = regexp.MustCompile(`\[(\d+)\]`)
	citationsOnly   = regexp.MustCompile(`^(?:\s*\[\d+\])+\s*\.?$`)
)

// Ground keeps the sentences of text that cite at least one passage in
// [1, n] and strips citations outside that range. A sentence made only of
// citations is attached to the sentence before it.
func Ground(text string, n int) string {
	var sentences []string
	for _, s := range tokenize.Sentences(text) {
		if citationsOnly.MatchString(s) && len(sentences) > 0 {
			sentences[len(sentences)-1] += " " + strings.TrimSpace(s)
			continue
		}
		sentences = append(sentences, s)
	}

	var kept []string
	for _, s := range sentences {
		valid := false
		s = citationPattern.ReplaceAllStringFunc(s, func(m string) string {
			i, err := strconv.Atoi(m[1 : len(m)-1])
			if err != nil || i < 1 || i > n {
				return ""
			}
			valid = true
			return m
		})
		if !valid {
			continue
		}
		s = strings.Join(strings.Fields(s), " ")
		if citationsOnly.MatchString(s) {
			continue
		}
		kept = append(kept, s)
	}
	return strings.Join(kept, " ")
}

// Citations returns the distinct passage numbers cited in text in order
// of first appearance.
func Citations(text string) []int {
	var out []int
	seen := make(map[int]bool)
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		i, err := strconv.Atoi(m[1])
		if err != nil || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	return out
}
