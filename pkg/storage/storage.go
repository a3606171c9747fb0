// Package storage keeps raw uploaded documents in a blob store. Memory,
// Azure Blob Storage, and MinIO backends share one System interface.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/JaimeStill/covenant/pkg/lifecycle"
)

// System is a flat key/blob store. Keys are slash-separated relative
// paths; Download and Delete report ErrNotFound for missing keys.
type System interface {
	// Start registers the container or bucket bootstrap as a startup hook.
	Start(lc *lifecycle.Coordinator) error
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	// Download returns the blob body. The caller closes it.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// New builds the backend named by cfg.Provider.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	switch cfg.Provider {
	case ProviderMemory:
		return NewMemory(logger), nil
	case ProviderAzure:
		return newAzure(cfg, logger)
	case ProviderMinio:
		return newMinio(cfg, logger)
	}
	return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
}

// validateKey rejects empty keys, absolute keys, backslashes, and empty,
// "." or ".." segments. Dots inside a segment ("v1..final.pdf") are fine.
func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.ContainsRune(key, '\\') {
		return ErrInvalidKey
	}
	for seg := range strings.SplitSeq(key, "/") {
		switch seg {
		case "", ".", "..":
			return ErrInvalidKey
		}
	}
	return nil
}
