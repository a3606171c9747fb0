package corpus

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Backend persists committed records. Save replaces every record owned by
// the contract in one transaction; a failed Save must leave the previous
// state intact.
type Backend interface {
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, rec Record) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type chunkRef struct {
	contract uuid.UUID
	position int
}

// Snapshot is an immutable view of the corpus at one version.
type Snapshot struct {
	version uint64
	records map[uuid.UUID]*Record
	chunks  map[uuid.UUID]chunkRef
}

func newSnapshot(version uint64, records map[uuid.UUID]*Record) *Snapshot {
	chunks := make(map[uuid.UUID]chunkRef)
	for id, rec := range records {
		for i, c := range rec.Chunks {
			chunks[c.ID] = chunkRef{contract: id, position: i}
		}
	}
	return &Snapshot{version: version, records: records, chunks: chunks}
}

// Version increases by one with every commit or delete.
func (s *Snapshot) Version() uint64 { return s.version }

// Len returns the number of contracts.
func (s *Snapshot) Len() int { return len(s.records) }

// Has reports whether the contract exists.
func (s *Snapshot) Has(id uuid.UUID) bool {
	_, ok := s.records[id]
	return ok
}

// Contract returns the contract summary.
func (s *Snapshot) Contract(id uuid.UUID) (Contract, bool) {
	rec, ok := s.records[id]
	if !ok {
		return Contract{}, false
	}
	return rec.clone().Contract, true
}

// Details returns the contract with its clauses, insights, and evidence.
func (s *Snapshot) Details(id uuid.UUID) (*Details, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Details(), nil
}

// Chunk resolves a chunk by id together with the name of its contract.
func (s *Snapshot) Chunk(id uuid.UUID) (Chunk, string, bool) {
	ref, ok := s.chunks[id]
	if !ok {
		return Chunk{}, "", false
	}
	rec := s.records[ref.contract]
	return rec.Chunks[ref.position], rec.Contract.Name, true
}

// ChunkClauses returns the clauses citing the chunk, in record order.
func (s *Snapshot) ChunkClauses(id uuid.UUID) []Clause {
	ref, ok := s.chunks[id]
	if !ok {
		return nil
	}
	var out []Clause
	for _, cl := range s.records[ref.contract].Clauses {
		if slices.Contains(cl.ChunkIDs, id) {
			out = append(out, cl)
		}
	}
	return out
}

// Chunks returns the chunks of one contract in position order.
func (s *Snapshot) Chunks(id uuid.UUID) []Chunk {
	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	return slices.Clone(rec.Chunks)
}

// Contracts returns every contract, most recently uploaded first with ties
// broken by name then id.
func (s *Snapshot) Contracts() []Contract {
	out := make([]Contract, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.clone().Contract)
	}
	slices.SortFunc(out, func(a, b Contract) int {
		if c := b.UploadedAt.Compare(a.UploadedAt); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

// List returns the contracts matching f in Contracts order.
func (s *Snapshot) List(f Filter) []Contract {
	all := s.Contracts()
	out := all[:0]
	for _, c := range all {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

// IDs returns every contract id in ascending string order.
func (s *Snapshot) IDs() []uuid.UUID {
	ids := slices.Collect(maps.Keys(s.records))
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return cmp.Compare(a.String(), b.String())
	})
	return ids
}

// Store holds the current snapshot and serializes writers. Readers take the
// snapshot pointer and never block on a commit.
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu   sync.Mutex
	snap atomic.Pointer[Snapshot]
}

// NewStore creates an empty store over backend. Call Load to populate it
// from previously committed records.
func NewStore(backend Backend, logger *slog.Logger) *Store {
	s := &Store{
		backend: backend,
		logger:  logger.With("system", "corpus"),
	}
	s.snap.Store(newSnapshot(0, map[uuid.UUID]*Record{}))
	return s
}

// Load replaces the in-memory state with the backend contents.
func (s *Store) Load(ctx context.Context) error {
	recs, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}

	records := make(map[uuid.UUID]*Record, len(recs))
	for i := range recs {
		rec := recs[i]
		if err := rec.Validate(); err != nil {
			s.logger.Warn("skipping invalid record", "id", rec.Contract.ID, "error", err)
			continue
		}
		records[rec.Contract.ID] = &rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Store(newSnapshot(s.Snapshot().version+1, records))
	s.logger.Info("corpus loaded", "contracts", len(records))
	return nil
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Commit validates and persists rec, then publishes a snapshot in which the
// contract's previous records are fully replaced. Nothing is published when
// validation or persistence fails.
func (s *Store) Commit(ctx context.Context, rec Record) (*Snapshot, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	committed := rec.clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.backend.Save(ctx, *committed); err != nil {
		return nil, fmt.Errorf("save contract %s: %w", rec.Contract.ID, err)
	}

	cur := s.Snapshot()
	records := maps.Clone(cur.records)
	records[committed.Contract.ID] = committed

	next := newSnapshot(cur.version+1, records)
	s.snap.Store(next)

	s.logger.Info(
		"contract committed",
		"id", committed.Contract.ID,
		"chunks", len(committed.Chunks),
		"clauses", len(committed.Clauses),
		"insights", len(committed.Insights),
		"version", next.version,
	)
	return next, nil
}

// Delete removes a contract and every record it owns.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Snapshot()
	if !cur.Has(id) {
		return nil, ErrNotFound
	}

	if err := s.backend.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("delete contract %s: %w", id, err)
	}

	records := maps.Clone(cur.records)
	delete(records, id)

	next := newSnapshot(cur.version+1, records)
	s.snap.Store(next)

	s.logger.Info("contract deleted", "id", id, "version", next.version)
	return next, nil
}

// Get returns the details of one contract.
func (s *Store) Get(id uuid.UUID) (*Details, error) {
	return s.Snapshot().Details(id)
}

// List returns the contracts matching f.
func (s *Store) List(f Filter) []Contract {
	return s.Snapshot().List(f)
}
