package storage_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/JaimeStill/covenant/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=covenantstore;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/covenantstore;"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNewProviders(t *testing.T) {
	tests := []struct {
		name    string
		cfg     storage.Config
		wantErr bool
	}{
		{"memory", storage.Config{Provider: storage.ProviderMemory, ContainerName: "contracts"}, false},
		{"azure", storage.Config{Provider: storage.ProviderAzure, ContainerName: "contracts", ConnectionString: azuriteConnString}, false},
		{"azure invalid connection string", storage.Config{Provider: storage.ProviderAzure, ContainerName: "contracts", ConnectionString: "not-a-connection-string"}, true},
		{"minio", storage.Config{Provider: storage.ProviderMinio, ContainerName: "contracts", Endpoint: "127.0.0.1:9000", AccessKey: "minio", SecretKey: "minio123"}, false},
		{"unknown", storage.Config{Provider: "s3", ContainerName: "contracts"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys, err := storage.New(&tt.cfg, discard)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if sys == nil {
				t.Fatal("New() returned nil system")
			}
		})
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory(discard)
	key := "contracts/abc/report.txt"

	if err := mem.Upload(ctx, key, strings.NewReader("hello"), "text/plain"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	ok, err := mem.Exists(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v; want true", ok, err)
	}

	rc, err := mem.Download(ctx, key)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hello" {
		t.Errorf("Download = %q, want hello", data)
	}

	if err := mem.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if mem.Len() != 0 {
		t.Errorf("Len = %d, want 0", mem.Len())
	}
}

func TestMemoryContentType(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory(discard)

	mem.Upload(ctx, "a.pdf", strings.NewReader("%PDF-"), "application/pdf")
	mem.Upload(ctx, "b.bin", strings.NewReader("raw"), "")

	tests := []struct {
		key    string
		want   string
		wantOK bool
	}{
		{"a.pdf", "application/pdf", true},
		{"b.bin", "application/octet-stream", true},
		{"missing", "", false},
	}

	for _, tt := range tests {
		got, ok := mem.ContentType(tt.key)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ContentType(%s) = %q, %v; want %q, %v", tt.key, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestMemoryNotFound(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory(discard)

	if _, err := mem.Download(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Download err = %v, want ErrNotFound", err)
	}
	if err := mem.Delete(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Delete err = %v, want ErrNotFound", err)
	}
	ok, err := mem.Exists(ctx, "missing")
	if err != nil || ok {
		t.Errorf("Exists = %v, %v; want false, nil", ok, err)
	}
}

func TestMemoryKeyValidation(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory(discard)

	tests := []struct {
		key  string
		want error
	}{
		{"", storage.ErrEmptyKey},
		{"contracts/../secret", storage.ErrInvalidKey},
		{"../secret", storage.ErrInvalidKey},
		{"/contracts/a.pdf", storage.ErrInvalidKey},
		{"contracts//a.pdf", storage.ErrInvalidKey},
		{"contracts/./a.pdf", storage.ErrInvalidKey},
		{`contracts\a.pdf`, storage.ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("key=%q", tt.key), func(t *testing.T) {
			if err := mem.Upload(ctx, tt.key, bytes.NewReader(nil), "text/plain"); !errors.Is(err, tt.want) {
				t.Errorf("Upload err = %v, want %v", err, tt.want)
			}
			if _, err := mem.Download(ctx, tt.key); !errors.Is(err, tt.want) {
				t.Errorf("Download err = %v, want %v", err, tt.want)
			}
			if err := mem.Delete(ctx, tt.key); !errors.Is(err, tt.want) {
				t.Errorf("Delete err = %v, want %v", err, tt.want)
			}
			if _, err := mem.Exists(ctx, tt.key); !errors.Is(err, tt.want) {
				t.Errorf("Exists err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMemoryKeyDotsInName(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory(discard)

	key := "contracts/abc/v1..final.pdf"
	if err := mem.Upload(ctx, key, strings.NewReader("%PDF-"), "application/pdf"); err != nil {
		t.Fatalf("Upload(%q) = %v", key, err)
	}
	if ok, _ := mem.Exists(ctx, key); !ok {
		t.Errorf("Exists(%q) = false", key)
	}
}

func TestMemoryUploadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mem := storage.NewMemory(discard)
	if err := mem.Upload(ctx, "k", strings.NewReader("x"), "text/plain"); !errors.Is(err, context.Canceled) {
		t.Errorf("Upload err = %v, want context.Canceled", err)
	}
	if mem.Len() != 0 {
		t.Errorf("Len = %d, want 0", mem.Len())
	}
}

func TestIsKeyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"empty key", storage.ErrEmptyKey, true},
		{"wrapped invalid key", fmt.Errorf("upload: %w", storage.ErrInvalidKey), true},
		{"not found", storage.ErrNotFound, false},
		{"unknown", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := storage.IsKeyError(tt.err); got != tt.want {
				t.Errorf("IsKeyError() = %v, want %v", got, tt.want)
			}
		})
	}
}
