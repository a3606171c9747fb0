package contracts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/pkg/storage"
)

// rawStore keeps the original upload of every contract. Keys embed the
// content digest, so storing identical bytes twice yields the same locator.
type rawStore struct {
	storage storage.System
	logger  *slog.Logger
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func rawKey(id uuid.UUID, sum, filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.ReplaceAll(name, "..", ".")
	if name == "" || name == "." || name == "/" {
		name = "document"
	}
	return fmt.Sprintf("contracts/%s/%s/%s", id, sum[:16], name)
}

func (r *rawStore) store(ctx context.Context, id uuid.UUID, sum, filename, contentType string, data []byte) (string, error) {
	key := rawKey(id, sum, filename)
	if err := r.storage.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", fmt.Errorf("store raw document: %w", err)
	}
	return key, nil
}

func (r *rawStore) fetch(ctx context.Context, locator string) ([]byte, error) {
	rc, err := r.storage.Download(ctx, locator)
	if err != nil {
		return nil, fmt.Errorf("fetch raw document: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read raw document: %w", err)
	}
	return data, nil
}

// remove deletes a stored document. Failures are logged: an orphaned blob
// never affects corpus state.
func (r *rawStore) remove(ctx context.Context, locator string) {
	if locator == "" {
		return
	}
	if err := r.storage.Delete(ctx, locator); err != nil && !errors.Is(err, storage.ErrNotFound) {
		r.logger.Warn("raw document cleanup failed", "locator", locator, "error", err)
	}
}
