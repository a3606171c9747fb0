package prompts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/pkg/lifecycle"
	"github.com/JaimeStill/covenant/pkg/pagination"
)

// Config holds the prompt system settings. Defaults are the configured
// instructions per stage, used when no override is active.
type Config struct {
	Defaults   map[Stage]string
	Pagination pagination.Config
}

type service struct {
	mu      sync.RWMutex
	prompts map[uuid.UUID]Prompt

	backend Backend
	cfg     Config
	logger  *slog.Logger
}

// New creates the prompt system over backend. Call Start, or rely on an
// empty set of overrides.
func New(backend Backend, cfg Config, logger *slog.Logger) System {
	return &service{
		prompts: make(map[uuid.UUID]Prompt),
		backend: backend,
		cfg:     cfg,
		logger:  logger.With("system", "prompts"),
	}
}

func (s *service) Handler() *Handler {
	return NewHandler(s, s.logger, s.cfg.Pagination)
}

func (s *service) Start(lc *lifecycle.Coordinator) error {
	dependencies := lc.Checkpoint()

	lc.OnStartup(func() {
		dependencies()
		if err := s.load(lc.Context()); err != nil {
			s.logger.Error("prompt load failed", "error", err)
		}
	})
	return nil
}

func (s *service) load(ctx context.Context) error {
	loaded, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}

	prompts := make(map[uuid.UUID]Prompt, len(loaded))
	for _, p := range loaded {
		if !p.Stage.Valid() {
			s.logger.Warn("skipping prompt with unknown stage", "id", p.ID, "stage", p.Stage)
			continue
		}
		prompts[p.ID] = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = prompts
	s.logger.Info("prompts loaded", "count", len(prompts))
	return nil
}

func (s *service) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Prompt], error) {
	page.Normalize(s.cfg.Pagination)

	s.mu.RLock()
	all := make([]Prompt, 0, len(s.prompts))
	for _, p := range s.prompts {
		if filters.Match(p) && matchSearch(p, page.Search) {
			all = append(all, p)
		}
	}
	s.mu.RUnlock()

	sortPrompts(all, page.Sort)
	result := pagination.Slice(all, page)
	return &result, nil
}

func (s *service) Find(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prompts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *service) Create(ctx context.Context, cmd CreateCommand) (*Prompt, error) {
	p, err := cmd.prompt()
	if err != nil {
		return nil, err
	}
	p.ID = uuid.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkName(p); err != nil {
		return nil, err
	}
	if err := s.backend.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save prompt: %w", err)
	}
	s.prompts[p.ID] = p

	s.logger.Info("prompt created", "id", p.ID, "name", p.Name, "stage", p.Stage)
	return &p, nil
}

// Update replaces the editable fields. Moving an active prompt to another
// stage deactivates it.
func (s *service) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Prompt, error) {
	p, err := cmd.prompt()
	if err != nil {
		return nil, err
	}
	p.ID = id

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.prompts[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.Active = current.Active && current.Stage == p.Stage

	if err := s.checkName(p); err != nil {
		return nil, err
	}
	if err := s.backend.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save prompt: %w", err)
	}
	s.prompts[id] = p

	s.logger.Info("prompt updated", "id", p.ID, "name", p.Name)
	return &p, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prompts[id]; !ok {
		return ErrNotFound
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}
	delete(s.prompts, id)

	s.logger.Info("prompt deleted", "id", id)
	return nil
}

// Activate makes the prompt the override for its stage, deactivating the
// stage's previous override in the same save.
func (s *service) Activate(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.prompts[id]
	if !ok {
		return nil, ErrNotFound
	}

	var changed []Prompt
	for _, p := range s.prompts {
		if p.Active && p.Stage == target.Stage && p.ID != id {
			p.Active = false
			changed = append(changed, p)
		}
	}
	target.Active = true
	changed = append(changed, target)

	if err := s.backend.Save(ctx, changed...); err != nil {
		return nil, fmt.Errorf("activate prompt: %w", err)
	}
	for _, p := range changed {
		s.prompts[p.ID] = p
	}

	s.logger.Info("prompt activated", "id", target.ID, "name", target.Name, "stage", target.Stage)
	return &target, nil
}

func (s *service) Deactivate(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prompts[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.Active = false

	if err := s.backend.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("deactivate prompt: %w", err)
	}
	s.prompts[id] = p

	s.logger.Info("prompt deactivated", "id", p.ID, "name", p.Name, "stage", p.Stage)
	return &p, nil
}

func (s *service) Instructions(ctx context.Context, stage Stage) (string, error) {
	if !stage.Valid() {
		return "", ErrInvalidStage
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.prompts {
		if p.Active && p.Stage == stage {
			return p.Instructions, nil
		}
	}
	if text := s.cfg.Defaults[stage]; text != "" {
		return text, nil
	}
	return Instructions(stage)
}

func (s *service) SystemPrompt(ctx context.Context, stage Stage) (string, error) {
	text, err := s.Instructions(ctx, stage)
	if err != nil {
		return "", err
	}
	return Compose(stage, text)
}

// checkName rejects a name already held by another prompt. Callers hold mu.
func (s *service) checkName(p Prompt) error {
	for _, other := range s.prompts {
		if other.ID != p.ID && other.Name == p.Name {
			return errorf(ErrDuplicate, "%q", p.Name)
		}
	}
	return nil
}
