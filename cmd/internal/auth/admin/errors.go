package admin

import "errors"

var (
	// ErrForbidden is returned when the caller is authenticated but not
	// permitted to perform the requested operation.
	ErrForbidden = errors.New("forbidden")

	// ErrUserNotFound is returned when the target username does not exist and
	// the caller was permitted to know that.
	ErrUserNotFound = errors.New("user not found")
)
