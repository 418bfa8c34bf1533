package credential

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidInput       = errors.New("invalid_input")
	ErrNotFound           = errors.New("not_found")
	ErrDuplicateUsername  = errors.New("duplicate_username")
	ErrStorageUnavailable = errors.New("storage_unavailable")
)
