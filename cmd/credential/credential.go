package credential

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Credential is the persisted record for one principal.
// Username is the primary key and immutable once created.
type Credential struct {
	Username     string
	PasswordHash string
	Authority    AuthorityLevel

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the credential persistence boundary.
//
// Contract:
//   - Create fails with ErrDuplicateUsername when the username already exists.
//   - FindByUsername fails with ErrNotFound when absent.
//   - The Update* and Delete methods return (false, nil) when no row matched
//     at the moment of the mutation; callers distinguish "definitely applied"
//     from "no matching row" without an error round-trip.
//   - Every mutation is a single parameterized statement; the backend's
//     row-level atomicity serializes conflicting writes to the same username.
//   - Transient backend failures surface as ErrStorageUnavailable.
type Store interface {
	Create(ctx context.Context, username, passwordHash string, authority AuthorityLevel) error
	FindByUsername(ctx context.Context, username string) (Credential, error)
	UpdatePasswordHash(ctx context.Context, username, newHash string) (bool, error)
	UpdateAuthority(ctx context.Context, username string, newAuthority AuthorityLevel) (bool, error)
	Delete(ctx context.Context, username string) (bool, error)

	// HasAdmin reports whether at least one ADMIN credential exists.
	// Used by startup bootstrap; not part of the request path.
	HasAdmin(ctx context.Context) (bool, error)
}

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// NormalizeUsername performs case-insensitive canonicalization.
// Note: for now we only trim + lower-case. Additional rules (unicode
// confusables) can be added later behind a versioned policy.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidUsername reports whether s is an acceptable username after normalization.
func ValidUsername(s string) bool {
	return usernameRe.MatchString(s)
}
