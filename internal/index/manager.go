package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/JaimeStill/covenant/internal/corpus"
)

// ErrIndexCorrupt reports that the index no longer matches the corpus.
var ErrIndexCorrupt = errors.New("index out of sync with corpus")

// Source supplies the canonical chunks the index projects.
// *corpus.Snapshot satisfies Source.
type Source interface {
	IDs() []uuid.UUID
	Chunks(id uuid.UUID) []corpus.Chunk
}

// Config tunes the Manager.
type Config struct {
	// Embedder enables the vector path when non-nil.
	Embedder embedding.Embedder
	// Weight is the share of the blended score given to vector similarity.
	Weight float64
	// Workers bounds concurrent embedding calls during a rebuild.
	Workers int
	// BatchSize bounds the texts sent per embedding call.
	BatchSize int
}

// Stats describes the published index.
type Stats struct {
	Contracts   int        `json:"contracts"`
	Chunks      int        `json:"chunks"`
	Vectors     bool       `json:"vectors"`
	Rebuilds    int64      `json:"rebuilds"`
	LastRebuild *time.Time `json:"last_rebuild,omitempty"`
}

// Manager publishes the current Index through an atomic pointer. Readers
// never block; writers publish copy-on-write successors. Rebuilds run off
// the read path and concurrent requests share one rebuild.
type Manager struct {
	current atomic.Pointer[Index]
	source  func() Source
	cfg     Config
	logger  *slog.Logger

	// mu orders publications so a rebuild cannot overwrite a newer Apply.
	mu    sync.Mutex
	group singleflight.Group

	rebuilds    atomic.Int64
	lastRebuild atomic.Pointer[time.Time]

	ctx     context.Context
	cancel  context.CancelFunc
	pending atomic.Bool
	wg      sync.WaitGroup
}

// NewManager creates a Manager publishing an empty index. source returns
// the corpus view to rebuild from.
func NewManager(source func() Source, cfg Config, logger *slog.Logger) *Manager {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		source: source,
		cfg:    cfg,
		logger: logger.With("system", "index"),
		ctx:    ctx,
		cancel: cancel,
	}
	m.current.Store(Empty())
	return m
}

// Index returns the published index.
func (m *Manager) Index() *Index {
	return m.current.Load()
}

// Vectors reports whether the vector path is enabled.
func (m *Manager) Vectors() bool {
	return m.cfg.Embedder != nil && m.cfg.Weight > 0
}

// Query builds a search query for terms, embedding text when the vector
// path is enabled. An embedding failure degrades to a lexical query.
func (m *Manager) Query(ctx context.Context, text string, terms []string, scope Scope) Query {
	q := Query{Terms: terms, Scope: scope}
	if !m.Vectors() {
		return q
	}
	vecs, err := m.cfg.Embedder.EmbedStrings(ctx, []string{text})
	if err != nil || len(vecs) != 1 {
		m.logger.WarnContext(ctx, "query embedding failed, using lexical scoring", "error", err)
		return q
	}
	q.Vector = vecs[0]
	q.Weight = m.cfg.Weight
	return q
}

// Segment builds the segment for a contract's chunks, embedding them when
// the vector path is enabled. An embedding failure yields a lexical-only
// segment.
func (m *Manager) Segment(ctx context.Context, contractID uuid.UUID, chunks []corpus.Chunk) (*Segment, error) {
	var vectors [][]float64
	if m.Vectors() {
		v, err := m.embed(ctx, chunks)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			m.logger.WarnContext(ctx, "chunk embedding failed, indexing lexically", "contract", contractID, "error", err)
		default:
			vectors = v
		}
	}
	return NewSegment(contractID, chunks, vectors), nil
}

func (m *Manager) embed(ctx context.Context, chunks []corpus.Chunk) ([][]float64, error) {
	out := make([][]float64, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)

	for start := 0; start < len(chunks); start += m.cfg.BatchSize {
		end := min(start+m.cfg.BatchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, end-start)
			for i, c := range chunks[start:end] {
				texts[i] = c.Text
			}
			vecs, err := m.cfg.Embedder.EmbedStrings(gctx, texts)
			if err != nil {
				return err
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
			}
			copy(out[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Apply publishes an index in which seg replaces the contract's segment.
func (m *Manager) Apply(seg *Segment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Store(m.current.Load().With(seg))
}

// Remove publishes an index without the contract's segment.
func (m *Manager) Remove(contractID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Store(m.current.Load().Without(contractID))
}

// Rebuild reconstructs the index from the corpus alone and publishes it.
// Segments whose chunk set is unchanged reuse their embeddings. Concurrent
// calls share a single rebuild.
func (m *Manager) Rebuild(ctx context.Context) (*Index, error) {
	ch := m.group.DoChan("rebuild", func() (any, error) {
		return m.rebuild(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Index), nil
	}
}

func (m *Manager) rebuild(ctx context.Context) (*Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	src := m.source()
	prev := m.current.Load()

	segments := make([]*Segment, 0, len(src.IDs()))
	for _, id := range src.IDs() {
		chunks := src.Chunks(id)
		if old, ok := prev.Segment(id); ok && old.Fingerprint() == Fingerprint(chunks) && old.HasVectors() == m.Vectors() {
			segments = append(segments, NewSegment(id, chunks, old.vectors()))
			continue
		}
		seg, err := m.Segment(ctx, id, chunks)
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", id, err)
		}
		segments = append(segments, seg)
	}

	next := Build(segments...)
	m.current.Store(next)

	now := time.Now().UTC()
	m.rebuilds.Add(1)
	m.lastRebuild.Store(&now)

	m.logger.Info(
		"index rebuilt",
		"contracts", next.Contracts(),
		"chunks", next.Len(),
		"duration", time.Since(start),
	)
	return next, nil
}

// Schedule requests a background rebuild. Requests made while one is
// already pending are coalesced.
func (m *Manager) Schedule() {
	if !m.pending.CompareAndSwap(false, true) {
		return
	}
	m.wg.Go(func() {
		m.pending.Store(false)
		if m.ctx.Err() != nil {
			return
		}
		if _, err := m.Rebuild(m.ctx); err != nil && m.ctx.Err() == nil {
			m.logger.Error("background rebuild failed", "error", err)
		}
	})
}

// Verify compares the published index against source and returns
// ErrIndexCorrupt describing the first drift found.
func (m *Manager) Verify(src Source) error {
	ix := m.current.Load()
	prints := ix.Fingerprints()

	ids := src.IDs()
	for _, id := range ids {
		got, ok := prints[id]
		if !ok {
			return fmt.Errorf("%w: contract %s not indexed", ErrIndexCorrupt, id)
		}
		if got != Fingerprint(src.Chunks(id)) {
			return fmt.Errorf("%w: contract %s has stale chunks", ErrIndexCorrupt, id)
		}
	}
	if len(prints) != len(ids) {
		return fmt.Errorf("%w: index holds %d contracts, corpus %d", ErrIndexCorrupt, len(prints), len(ids))
	}
	return nil
}

// VerifyAndRepair verifies the index against the current source and
// rebuilds on drift.
func (m *Manager) VerifyAndRepair(ctx context.Context) error {
	err := m.Verify(m.source())
	if err == nil {
		return nil
	}
	m.logger.WarnContext(ctx, "index drift detected, rebuilding", "error", err)
	_, err = m.Rebuild(ctx)
	return err
}

// Stats describes the published index.
func (m *Manager) Stats() Stats {
	ix := m.current.Load()
	return Stats{
		Contracts:   ix.Contracts(),
		Chunks:      ix.Len(),
		Vectors:     m.Vectors(),
		Rebuilds:    m.rebuilds.Load(),
		LastRebuild: m.lastRebuild.Load(),
	}
}

// Wait blocks until background rebuilds finish.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close cancels pending background work and waits for it to stop.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}
