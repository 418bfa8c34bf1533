package session

import "errors"

var (
	// ErrInvalidCredentials is returned by Login when the username is unknown
	// or the password does not match. The two cases are deliberately
	// indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated is returned by Resolve when the token is missing,
	// malformed, expired, or names a credential that no longer exists.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
