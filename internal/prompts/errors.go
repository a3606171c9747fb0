package prompts

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors for prompt operations.
var (
	ErrNotFound      = errors.New("prompt not found")
	ErrDuplicate     = errors.New("prompt name already exists")
	ErrInvalidStage  = errors.New("stage must be classify or answer")
	ErrInvalidPrompt = errors.New("invalid prompt")
)

func errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Kind names the error class reported to callers.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrDuplicate):
		return "Duplicate"
	case errors.Is(err, ErrInvalidStage), errors.Is(err, ErrInvalidPrompt):
		return "InvalidRequest"
	}
	return "Internal"
}

// MapHTTPStatus maps prompt domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch Kind(err) {
	case "NotFound":
		return http.StatusNotFound
	case "Duplicate":
		return http.StatusConflict
	case "InvalidRequest":
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
