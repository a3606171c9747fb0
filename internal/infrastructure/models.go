package infrastructure

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"

	"github.com/JaimeStill/covenant/internal/config"
	"github.com/JaimeStill/covenant/internal/index"
)

// NewChatModel connects the configured chat model. It returns nil when no
// provider is configured.
func NewChatModel(ctx context.Context, cfg *config.GenerationConfig) (model.BaseChatModel, error) {
	switch cfg.Provider {
	case config.ProviderNone:
		return nil, nil
	case config.ProviderOllama:
		m, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.TimeoutDuration(),
		})
		if err != nil {
			return nil, fmt.Errorf("ollama chat model: %w", err)
		}
		return m, nil
	case config.ProviderOpenAI:
		m, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.TimeoutDuration(),
			ByAzure:    cfg.Azure,
			APIVersion: cfg.APIVersion,
		})
		if err != nil {
			return nil, fmt.Errorf("openai chat model: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported generation provider %q", cfg.Provider)
	}
}

// NewEmbedder creates the configured embedder. It returns nil when no
// provider is configured.
func NewEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	switch cfg.Provider {
	case config.ProviderNone:
		return nil, nil
	case config.ProviderHashing:
		return index.NewHashingEmbedder(cfg.Dimensions), nil
	case config.ProviderOllama:
		return index.NewOllamaEmbedder(ctx, index.OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.TimeoutDuration(),
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}
}
