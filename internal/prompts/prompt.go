package prompts

import (
	"strings"

	"github.com/google/uuid"
)

// Prompt is a named instruction override for one stage. At most one prompt
// per stage is active; the active prompt replaces the stage's configured
// instructions while the response specification stays fixed.
type Prompt struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Stage        Stage     `json:"stage"`
	Instructions string    `json:"instructions"`
	Description  *string   `json:"description"`
	Active       bool      `json:"active"`
}

// CreateCommand carries the fields of a new, inactive override.
type CreateCommand struct {
	Name         string  `json:"name"`
	Stage        Stage   `json:"stage"`
	Instructions string  `json:"instructions"`
	Description  *string `json:"description"`
}

// UpdateCommand replaces the editable fields of an override.
type UpdateCommand struct {
	Name         string  `json:"name"`
	Stage        Stage   `json:"stage"`
	Instructions string  `json:"instructions"`
	Description  *string `json:"description"`
}

// fields normalizes and checks the editable fields shared by both commands.
func fields(name string, stage Stage, instructions string, description *string) (Prompt, error) {
	p := Prompt{
		Name:         strings.TrimSpace(name),
		Stage:        stage,
		Instructions: strings.TrimSpace(instructions),
	}
	if description != nil {
		if d := strings.TrimSpace(*description); d != "" {
			p.Description = &d
		}
	}

	switch {
	case p.Name == "":
		return Prompt{}, errorf(ErrInvalidPrompt, "name is required")
	case !p.Stage.Valid():
		return Prompt{}, ErrInvalidStage
	case p.Instructions == "":
		return Prompt{}, errorf(ErrInvalidPrompt, "instructions are required")
	}
	return p, nil
}

func (c CreateCommand) prompt() (Prompt, error) {
	return fields(c.Name, c.Stage, c.Instructions, c.Description)
}

func (c UpdateCommand) prompt() (Prompt, error) {
	return fields(c.Name, c.Stage, c.Instructions, c.Description)
}
