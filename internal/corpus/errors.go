package corpus

import "errors"

// Domain errors for corpus operations.
var (
	ErrNotFound      = errors.New("contract not found")
	ErrDuplicate     = errors.New("contract already exists")
	ErrInvalidRecord = errors.New("invalid contract record")
)
