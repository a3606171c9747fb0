package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/JaimeStill/covenant/internal/corpus"
	"github.com/JaimeStill/covenant/internal/prompts"
)

// ChatGenerator drafts answers with a chat model. Evidence passages are
// numbered in rank order so the model can cite them.
type ChatGenerator struct {
	model   model.BaseChatModel
	prompts prompts.Source
}

// NewChatGenerator creates a ChatGenerator. The answer system prompt is
// resolved from src on every call.
func NewChatGenerator(m model.BaseChatModel, src prompts.Source) (*ChatGenerator, error) {
	if _, err := src.SystemPrompt(context.Background(), prompts.StageAnswer); err != nil {
		return nil, fmt.Errorf("compose answer prompt: %w", err)
	}
	return &ChatGenerator{model: m, prompts: src}, nil
}

func (g *ChatGenerator) Generate(ctx context.Context, query string, evidence []corpus.Evidence) (string, error) {
	system, err := g.prompts.SystemPrompt(ctx, prompts.StageAnswer)
	if err != nil {
		return "", fmt.Errorf("compose answer prompt: %w", err)
	}

	msg, err := g.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(Prompt(query, evidence)),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(msg.Content), nil
}

// Prompt renders the question and numbered evidence passages.
func Prompt(query string, evidence []corpus.Evidence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nEvidence:\n", strings.TrimSpace(query))
	for i, ev := range evidence {
		name := ev.ContractName
		if name == "" {
			name = ev.ContractID.String()
		}
		fmt.Fprintf(&b, "\n[%d] %s, page %d:\n%s\n", i+1, name, ev.Page, strings.TrimSpace(ev.Text))
	}
	return b.String()
}
