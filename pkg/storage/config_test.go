package storage_test

import (
	"strings"
	"testing"

	"github.com/JaimeStill/covenant/pkg/storage"
)

func TestFinalizeDefaults(t *testing.T) {
	cfg := storage.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.Provider != storage.ProviderMemory {
		t.Errorf("provider: got %s, want %s", cfg.Provider, storage.ProviderMemory)
	}
	if cfg.ContainerName != "contracts" {
		t.Errorf("container_name: got %s, want contracts", cfg.ContainerName)
	}
}

func TestFinalizeEnvOverrides(t *testing.T) {
	t.Setenv("TEST_PROVIDER", "minio")
	t.Setenv("TEST_CONTAINER", "uploads")
	t.Setenv("TEST_ENDPOINT", "localhost:9000")
	t.Setenv("TEST_ACCESS", "ak")
	t.Setenv("TEST_SECRET", "sk")
	t.Setenv("TEST_SSL", "true")

	env := &storage.Env{
		Provider:      "TEST_PROVIDER",
		ContainerName: "TEST_CONTAINER",
		Endpoint:      "TEST_ENDPOINT",
		AccessKey:     "TEST_ACCESS",
		SecretKey:     "TEST_SECRET",
		UseSSL:        "TEST_SSL",
	}

	cfg := storage.Config{}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.Provider != storage.ProviderMinio {
		t.Errorf("provider: got %s, want minio", cfg.Provider)
	}
	if cfg.ContainerName != "uploads" {
		t.Errorf("container_name: got %s, want uploads", cfg.ContainerName)
	}
	if cfg.Endpoint != "localhost:9000" {
		t.Errorf("endpoint: got %s", cfg.Endpoint)
	}
	if !cfg.UseSSL {
		t.Error("use_ssl: got false, want true")
	}
}

func TestFinalizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     storage.Config
		wantErr string
	}{
		{
			name:    "azure missing connection_string",
			cfg:     storage.Config{Provider: storage.ProviderAzure},
			wantErr: "connection_string required",
		},
		{
			name:    "minio missing endpoint",
			cfg:     storage.Config{Provider: storage.ProviderMinio, AccessKey: "a", SecretKey: "s"},
			wantErr: "endpoint required",
		},
		{
			name:    "minio missing credentials",
			cfg:     storage.Config{Provider: storage.ProviderMinio, Endpoint: "localhost:9000"},
			wantErr: "access_key and secret_key required",
		},
		{
			name:    "unsupported provider",
			cfg:     storage.Config{Provider: "gcs"},
			wantErr: "unsupported provider",
		},
		{
			name: "azure complete",
			cfg:  storage.Config{Provider: storage.ProviderAzure, ConnectionString: "conn"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := storage.Config{
		Provider:         storage.ProviderAzure,
		ContainerName:    "contracts",
		ConnectionString: "base-conn",
	}

	overlay := storage.Config{ConnectionString: "overlay-conn", UseSSL: true}
	base.Merge(&overlay)

	if base.ContainerName != "contracts" {
		t.Errorf("container_name should remain contracts, got %s", base.ContainerName)
	}
	if base.Provider != storage.ProviderAzure {
		t.Errorf("provider should remain azure, got %s", base.Provider)
	}
	if base.ConnectionString != "overlay-conn" {
		t.Errorf("connection_string: got %s, want overlay-conn", base.ConnectionString)
	}
	if !base.UseSSL {
		t.Error("use_ssl: got false, want true")
	}
}
