package infrastructure_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/JaimeStill/covenant/internal/config"
	"github.com/JaimeStill/covenant/internal/index"
	"github.com/JaimeStill/covenant/internal/infrastructure"
	"github.com/JaimeStill/covenant/pkg/database"
	"github.com/JaimeStill/covenant/pkg/storage"
)

func validConfig() *config.Config {
	return &config.Config{
		Storage: storage.Config{
			Provider:      storage.ProviderMemory,
			ContainerName: "contracts",
		},
		Logging: config.LoggingConfig{Level: "info", Format: "text"},
		Version: "0.1.0",
	}
}

func TestNew(t *testing.T) {
	infra, err := infrastructure.New(context.Background(), validConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if infra.Lifecycle == nil {
		t.Error("Lifecycle is nil")
	}
	if infra.Logger == nil {
		t.Error("Logger is nil")
	}
	if infra.Database != nil {
		t.Error("Database should be nil when disabled")
	}
	if infra.Storage == nil {
		t.Error("Storage is nil")
	}
	if infra.Chat != nil {
		t.Error("Chat should be nil without a provider")
	}
	if infra.Embedder != nil {
		t.Error("Embedder should be nil without a provider")
	}
}

func TestNewDatabaseEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Database = database.Config{
		Enabled:         true,
		Host:            "localhost",
		Port:            5432,
		Name:            "covenant",
		User:            "covenant",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: "15m",
		ConnTimeout:     "5s",
	}

	infra, err := infrastructure.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	conn := infra.Database.Connection()
	if conn == nil {
		t.Fatal("Database.Connection() returned nil")
	}
	conn.Close()
}

func TestNewInvalidStorageConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Storage = storage.Config{
		Provider:         storage.ProviderAzure,
		ContainerName:    "contracts",
		ConnectionString: "not-a-connection-string",
	}

	if _, err := infrastructure.New(context.Background(), cfg); err == nil {
		t.Fatal("expected error for invalid storage connection string")
	}
}

func TestNewEmbedder(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EmbeddingConfig
		wantNil bool
		wantErr bool
	}{
		{"none", config.EmbeddingConfig{}, true, false},
		{"hashing", config.EmbeddingConfig{Provider: config.ProviderHashing, Dimensions: 64}, false, false},
		{"ollama", config.EmbeddingConfig{Provider: config.ProviderOllama, BaseURL: "http://localhost:11434", Model: "nomic-embed-text"}, false, false},
		{"unknown", config.EmbeddingConfig{Provider: "word2vec"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := infrastructure.NewEmbedder(context.Background(), &tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if (e == nil) != tt.wantNil {
				t.Errorf("embedder nil = %v, want %v", e == nil, tt.wantNil)
			}
		})
	}

	e, _ := infrastructure.NewEmbedder(context.Background(), &config.EmbeddingConfig{Provider: config.ProviderHashing, Dimensions: 64})
	if h, ok := e.(*index.HashingEmbedder); !ok || h.Dimensions != 64 {
		t.Errorf("hashing embedder = %#v", e)
	}
}

func TestNewChatModel(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.GenerationConfig
		wantNil bool
		wantErr bool
	}{
		{"none", config.GenerationConfig{}, true, false},
		{"ollama", config.GenerationConfig{Provider: config.ProviderOllama, BaseURL: "http://localhost:11434", Model: "llama3.2"}, false, false},
		{"openai", config.GenerationConfig{Provider: config.ProviderOpenAI, APIKey: "sk-test", Model: "gpt-4o-mini"}, false, false},
		{"unknown", config.GenerationConfig{Provider: "oracle"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := infrastructure.NewChatModel(context.Background(), &tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if (m == nil) != tt.wantNil {
				t.Errorf("model nil = %v, want %v", m == nil, tt.wantNil)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := infrastructure.NewLogger(&config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("dropped")
	logger.Warn("kept", "system", "test")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "kept" || entry["system"] != "test" {
		t.Errorf("entry = %v", entry)
	}
}
