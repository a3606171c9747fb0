package prompts

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/pkg/query"
	"github.com/JaimeStill/covenant/pkg/repository"
)

// Backend persists prompt overrides. Save writes every given prompt in one
// transaction and in argument order, so a deactivation listed before an
// activation never leaves two active prompts for a stage.
type Backend interface {
	Load(ctx context.Context) ([]Prompt, error)
	Save(ctx context.Context, prompts ...Prompt) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// MemoryBackend keeps prompts in process memory.
type MemoryBackend struct {
	mu      sync.Mutex
	prompts map[uuid.UUID]Prompt
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{prompts: make(map[uuid.UUID]Prompt)}
}

func (m *MemoryBackend) Load(ctx context.Context) ([]Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Prompt, 0, len(m.prompts))
	for _, p := range m.prompts {
		out = append(out, p)
	}
	return out, nil
}

func (m *MemoryBackend) Save(ctx context.Context, prompts ...Prompt) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range prompts {
		m.prompts[p.ID] = p
	}
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.prompts[id]; !ok {
		return ErrNotFound
	}
	delete(m.prompts, id)
	return nil
}

const upsertPrompt = `
	INSERT INTO prompts(id, name, stage, instructions, description, active)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		stage = EXCLUDED.stage,
		instructions = EXCLUDED.instructions,
		description = EXCLUDED.description,
		active = EXCLUDED.active`

// PostgresBackend persists prompts in the prompts table. A unique index on
// name reports ErrDuplicate and a partial unique index allows one active
// prompt per stage.
type PostgresBackend struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgresBackend(db *sql.DB, logger *slog.Logger) *PostgresBackend {
	return &PostgresBackend{
		db:     db,
		logger: logger.With("system", "prompts.postgres"),
	}
}

func (p *PostgresBackend) Load(ctx context.Context) ([]Prompt, error) {
	q, args := query.NewBuilder(projection, defaultSort...).Build()
	prompts, err := repository.QueryMany(ctx, p.db, q, args, scanPrompt)
	if err != nil {
		return nil, fmt.Errorf("query prompts: %w", err)
	}
	p.logger.Info("prompts loaded", "count", len(prompts))
	return prompts, nil
}

func (p *PostgresBackend) Save(ctx context.Context, prompts ...Prompt) error {
	err := repository.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		return repository.ExecEach(ctx, tx, upsertPrompt, prompts, func(_ int, pr Prompt) []any {
			return []any{pr.ID, pr.Name, string(pr.Stage), pr.Instructions, pr.Description, pr.Active}
		})
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return nil
}

func (p *PostgresBackend) Delete(ctx context.Context, id uuid.UUID) error {
	err := repository.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		return repository.ExecExpectOne(ctx, tx, "DELETE FROM prompts WHERE id = $1", id)
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return nil
}
