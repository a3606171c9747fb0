// Package handlers provides HTTP response helpers shared by domain handlers.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// DefaultBodyLimit caps JSON request bodies when the caller passes no limit.
const DefaultBodyLimit = 1 << 20

// ErrorResponse is the JSON body written for failed requests. Kind is
// populated when the caller classifies the failure.
type ErrorResponse struct {
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error"`
}

// DecodeJSON reads exactly one JSON value from the request body into v.
// Unknown fields, trailing data, and bodies over limit bytes are errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any, limit int64) error {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return errors.New("request body has trailing data")
	}
	return nil
}

func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// RespondError logs err and writes it as a JSON error body.
func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	RespondKind(w, logger, status, "", err)
}

// RespondKind writes err with a machine-readable kind alongside the message.
// Server errors log at error, client errors at warn.
func RespondKind(w http.ResponseWriter, logger *slog.Logger, status int, kind string, err error) {
	level := slog.LevelWarn
	msg := "request rejected"
	if status >= http.StatusInternalServerError {
		level, msg = slog.LevelError, "request failed"
	}
	logger.Log(context.Background(), level, msg, "status", status, "kind", kind, "error", err)

	RespondJSON(w, status, ErrorResponse{Kind: kind, Error: err.Error()})
}
