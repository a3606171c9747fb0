package contracts

import (
	"context"
	"errors"
	"net/http"

	"github.com/JaimeStill/covenant/internal/answer"
	"github.com/JaimeStill/covenant/internal/corpus"
	"github.com/JaimeStill/covenant/internal/extract"
	"github.com/JaimeStill/covenant/internal/index"
	"github.com/JaimeStill/covenant/internal/parse"
	"github.com/JaimeStill/covenant/internal/retrieve"
	"github.com/JaimeStill/covenant/internal/segment"
	"github.com/JaimeStill/covenant/pkg/storage"
)

// Domain errors for contract operations.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrTimeout        = errors.New("request timed out")
)

// ErrorKind is the stable classification reported to callers.
type ErrorKind string

// Error kinds.
const (
	KindEmptyDocument        ErrorKind = "EmptyDocument"
	KindUnsupportedFileType  ErrorKind = "UnsupportedFileType"
	KindFileTooLarge         ErrorKind = "FileTooLarge"
	KindNoExtractableContent ErrorKind = "NoExtractableContent"
	KindEmptyQuery           ErrorKind = "EmptyQuery"
	KindNotFound             ErrorKind = "NotFound"
	KindIndexCorrupt         ErrorKind = "IndexCorrupt"
	KindTimeout              ErrorKind = "Timeout"
	KindCanceled             ErrorKind = "Canceled"
	KindInvalidRequest       ErrorKind = "InvalidRequest"
	KindInternal             ErrorKind = "Internal"
)

// Kind classifies err. Unrecognized errors are Internal.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, segment.ErrEmptyDocument):
		return KindEmptyDocument
	case errors.Is(err, parse.ErrUnsupportedFileType), errors.Is(err, parse.ErrUnreadable):
		return KindUnsupportedFileType
	case errors.Is(err, parse.ErrFileTooLarge):
		return KindFileTooLarge
	case errors.Is(err, extract.ErrNoExtractableContent):
		return KindNoExtractableContent
	case errors.Is(err, retrieve.ErrEmptyQuery):
		return KindEmptyQuery
	case errors.Is(err, corpus.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return KindNotFound
	case errors.Is(err, index.ErrIndexCorrupt):
		return KindIndexCorrupt
	case errors.Is(err, ErrTimeout), errors.Is(err, answer.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrInvalidRequest), storage.IsKeyError(err):
		return KindInvalidRequest
	}
	return KindInternal
}

// MapHTTPStatus maps contract domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch Kind(err) {
	case KindEmptyDocument, KindNoExtractableContent:
		return http.StatusUnprocessableEntity
	case KindUnsupportedFileType:
		return http.StatusUnsupportedMediaType
	case KindFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindEmptyQuery, KindInvalidRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindIndexCorrupt:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindCanceled:
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}
