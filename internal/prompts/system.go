package prompts

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/pkg/lifecycle"
	"github.com/JaimeStill/covenant/pkg/pagination"
)

// Source resolves the system prompt for a stage when a model call is made,
// so that activating an override takes effect without a restart.
type Source interface {
	SystemPrompt(ctx context.Context, stage Stage) (string, error)
}

// Static is a Source over fixed instructions per stage. Stages without an
// entry use the built-in instructions.
type Static map[Stage]string

func (s Static) SystemPrompt(ctx context.Context, stage Stage) (string, error) {
	return Compose(stage, s[stage])
}

// System defines the public contract for prompt override operations.
type System interface {
	Source

	Handler() *Handler

	// Start loads the stored overrides once the startup hooks registered
	// before it, such as the database ping, have run.
	Start(lc *lifecycle.Coordinator) error

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Prompt], error)

	Find(ctx context.Context, id uuid.UUID) (*Prompt, error)
	Create(ctx context.Context, cmd CreateCommand) (*Prompt, error)
	Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Prompt, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Activate(ctx context.Context, id uuid.UUID) (*Prompt, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*Prompt, error)

	// Instructions returns the effective instructions for a stage: the
	// active override, else the configured default, else the built-in text.
	Instructions(ctx context.Context, stage Stage) (string, error)
}
