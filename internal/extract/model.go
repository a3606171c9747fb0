package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/JaimeStill/covenant/internal/corpus"
	"github.com/JaimeStill/covenant/internal/prompts"
	"github.com/JaimeStill/covenant/pkg/formatting"
)

// ModelClassifier asks a chat model to label each chunk. Replies naming a
// topic outside the topic table are treated as no topic.
type ModelClassifier struct {
	model   model.BaseChatModel
	prompts prompts.Source
	titles  map[string]string
	logger  *slog.Logger
}

// NewModelClassifier creates a ModelClassifier. The classify system prompt
// is resolved from src on every call.
func NewModelClassifier(m model.BaseChatModel, src prompts.Source, logger *slog.Logger) (*ModelClassifier, error) {
	if _, err := src.SystemPrompt(context.Background(), prompts.StageClassify); err != nil {
		return nil, fmt.Errorf("compose classify prompt: %w", err)
	}

	titles := make(map[string]string)
	for _, t := range DefaultTopics() {
		titles[strings.ToLower(t.Title)] = t.Title
	}

	return &ModelClassifier{
		model:   m,
		prompts: src,
		titles:  titles,
		logger:  logger.With("system", "extract.model"),
	}, nil
}

func (c *ModelClassifier) Classify(ctx context.Context, chunk corpus.Chunk) (Classification, bool, error) {
	system, err := c.prompts.SystemPrompt(ctx, prompts.StageClassify)
	if err != nil {
		return Classification{}, false, fmt.Errorf("compose classify prompt: %w", err)
	}

	msg, err := c.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(fmt.Sprintf("Passage (page %d):\n\n%s", chunk.Page, chunk.Text)),
	})
	if err != nil {
		return Classification{}, false, fmt.Errorf("generate: %w", err)
	}

	reply, err := formatting.Parse[Classification](msg.Content)
	if err != nil {
		c.logger.WarnContext(ctx, "unparseable classification", "chunk", chunk.ID, "error", err)
		return Classification{}, false, nil
	}

	title, ok := c.titles[strings.ToLower(strings.TrimSpace(reply.Title))]
	if !ok {
		return Classification{}, false, nil
	}

	text := strings.TrimSpace(reply.Text)
	if text != "" && !strings.Contains(chunk.Text, text) {
		text = ""
	}

	return Classification{
		Title:      title,
		Confidence: reply.Confidence,
		Text:       text,
	}, true, nil
}
