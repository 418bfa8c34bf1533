package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"authd/cmd/credential"
	"authd/cmd/security/password"
)

// Identity is the authenticated principal produced by Resolve.
//
// Authority always reflects the store at resolution time, not the value at
// login, so privilege changes apply to already-issued tokens.
type Identity struct {
	Username  string
	Authority credential.AuthorityLevel
}

// Authenticator implements login and token resolution over a credential store.
type Authenticator struct {
	cfg    Config
	store  credential.Store
	hasher password.Hasher
	tokens TokenManager
	log    *slog.Logger

	// decoyHash is a real hash of a random throwaway password. Login verifies
	// against it when the username is unknown, so both failure paths spend a
	// full hash computation.
	decoyHash string
}

// NewAuthenticator constructs an Authenticator.
//
// It pre-computes a decoy password hash used to equalize the cost of login
// failures for unknown and known usernames.
func NewAuthenticator(cfg Config, store credential.Store, hasher password.Hasher, tokens TokenManager, log *slog.Logger) (*Authenticator, error) {
	if store == nil || hasher == nil || tokens == nil {
		return nil, ErrConfig
	}
	if log == nil {
		log = slog.Default()
	}

	decoy, err := randomSecret(24)
	if err != nil {
		return nil, fmt.Errorf("session: decoy secret: %w", err)
	}
	decoyHash, err := hasher.Hash(decoy)
	if err != nil {
		return nil, fmt.Errorf("session: decoy hash: %w", err)
	}

	return &Authenticator{
		cfg:       cfg,
		store:     store,
		hasher:    hasher,
		tokens:    tokens,
		log:       log,
		decoyHash: decoyHash,
	}, nil
}

// Login verifies the password for username and issues a signed token.
//
// Unknown usernames and wrong passwords both return ErrInvalidCredentials,
// and both paths run a full password verification so response timing does not
// reveal whether the username exists. Storage failures surface as
// credential.ErrStorageUnavailable, never as an authentication verdict.
func (a *Authenticator) Login(ctx context.Context, username, plain string) (string, time.Time, error) {
	username = credential.NormalizeUsername(username)

	lookupCtx, cancel := a.lookupContext(ctx)
	defer cancel()

	cred, err := a.store.FindByUsername(lookupCtx, username)
	switch {
	case err == nil:
		// fall through to verification
	case credential.IsNotFound(err):
		// Burn the same hashing cost as the known-user path.
		if _, verr := a.hasher.Verify(plain, a.decoyHash); verr != nil {
			a.log.Warn("decoy verification failed", "err", verr)
		}
		return "", time.Time{}, ErrInvalidCredentials
	default:
		return "", time.Time{}, err
	}

	ok, err := a.hasher.Verify(plain, cred.PasswordHash)
	if err != nil {
		// A stored hash we cannot parse is a data problem, not a bad password.
		a.log.Error("stored hash rejected by verifier", "username", username, "err", err)
		return "", time.Time{}, &credential.StorageError{Op: "session.login", Err: err}
	}
	if !ok {
		return "", time.Time{}, ErrInvalidCredentials
	}

	token, exp, err := a.tokens.Issue(cred.Username, time.Now().UTC())
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session: issue token: %w", err)
	}
	return token, exp, nil
}

// lookupContext bounds store reads by the configured LookupTimeout so a
// stalled backend cannot hang Login or Resolve.
func (a *Authenticator) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.LookupTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.cfg.LookupTimeout)
}

// Resolve verifies a presented token and returns the current identity.
//
// The credential store is re-read on every call: a deleted user resolves to
// ErrUnauthenticated even with a valid token, and the returned authority is
// the store's current value rather than anything captured at login.
func (a *Authenticator) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}

	claims, err := a.tokens.Verify(token, time.Now().UTC())
	if err != nil {
		return Identity{}, ErrUnauthenticated
	}

	lookupCtx, cancel := a.lookupContext(ctx)
	defer cancel()

	cred, err := a.store.FindByUsername(lookupCtx, claims.Username)
	switch {
	case err == nil:
		return Identity{Username: cred.Username, Authority: cred.Authority}, nil
	case credential.IsNotFound(err):
		return Identity{}, ErrUnauthenticated
	default:
		return Identity{}, err
	}
}

func randomSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
