package corpus

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryBackend keeps records in process memory. Used when no database is
// configured and in tests.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[uuid.UUID]Record
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[uuid.UUID]Record)}
}

func (m *MemoryBackend) Load(ctx context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec.clone())
	}
	return out, nil
}

func (m *MemoryBackend) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[rec.Contract.ID] = *rec.clone()
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}
