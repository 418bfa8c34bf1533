package admin

import (
	"context"
	"fmt"
	"log/slog"

	"authd/cmd/credential"
	"authd/cmd/internal/auth/policy"
	"authd/cmd/internal/auth/session"
	"authd/cmd/security/password"
)

// Service carries out credential administration against a store.
//
// Ordering of failures is part of the contract: authorization is decided
// first, on the caller and target names alone, and the store is only touched
// after an allow. Target existence is therefore never leaked to callers who
// lack rights over the target.
type Service struct {
	store  credential.Store
	hasher password.Hasher
	log    *slog.Logger
}

// NewService constructs a Service. A nil logger falls back to slog.Default.
func NewService(store credential.Store, hasher password.Hasher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, hasher: hasher, log: log}
}

func (s *Service) authorize(caller session.Identity, action policy.Action, target string) error {
	d := policy.Authorize(policy.Caller{Username: caller.Username, Authority: caller.Authority}, action, target)
	s.log.Info("authorization decision",
		"action", action.String(),
		"caller", caller.Username,
		"target", target,
		"allowed", d.Allowed,
		"reason", d.Reason,
	)
	if !d.Allowed {
		return ErrForbidden
	}
	return nil
}

// Register creates a new credential at the base authority level. It is the
// one operation here with no actor: anyone may register, and privilege is
// only ever granted afterwards through ChangeAuthority.
//
// An existing username yields credential.ErrDuplicateUsername and leaves the
// stored record untouched.
func (s *Service) Register(ctx context.Context, username, plain string) error {
	username = credential.NormalizeUsername(username)
	if !credential.ValidUsername(username) {
		return &credential.OpError{Op: "admin.register", Kind: credential.ErrInvalidInput, Msg: "invalid username"}
	}

	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return fmt.Errorf("admin: hash password: %w", err)
	}

	if err := s.store.Create(ctx, username, hash, credential.AuthorityUser); err != nil {
		return err
	}

	s.log.Info("user registered", "username", username)
	return nil
}

// ChangePassword replaces the target's password hash.
func (s *Service) ChangePassword(ctx context.Context, caller session.Identity, target, newPlain string) error {
	target = credential.NormalizeUsername(target)

	if err := s.authorize(caller, policy.ActionChangePassword, target); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPlain)
	if err != nil {
		return fmt.Errorf("admin: hash password: %w", err)
	}

	ok, err := s.store.UpdatePasswordHash(ctx, target, hash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}

	s.log.Info("password changed", "caller", caller.Username, "target", target)
	return nil
}

// ChangeAuthority sets the target's authority level.
func (s *Service) ChangeAuthority(ctx context.Context, caller session.Identity, target string, level credential.AuthorityLevel) error {
	target = credential.NormalizeUsername(target)

	if err := s.authorize(caller, policy.ActionChangeAuthority, target); err != nil {
		return err
	}
	if !level.Valid() {
		return &credential.OpError{Op: "admin.change_authority", Kind: credential.ErrInvalidInput, Msg: "unknown authority level"}
	}

	ok, err := s.store.UpdateAuthority(ctx, target, level)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}

	s.log.Info("authority changed", "caller", caller.Username, "target", target, "authority", level.String())
	return nil
}

// DeleteUser removes the target credential. Deleting an absent user returns
// ErrUserNotFound; repeating a delete is therefore not idempotent at the API
// level, which lets callers distinguish the first removal from a replay.
func (s *Service) DeleteUser(ctx context.Context, caller session.Identity, target string) error {
	target = credential.NormalizeUsername(target)

	if err := s.authorize(caller, policy.ActionDeleteUser, target); err != nil {
		return err
	}

	ok, err := s.store.Delete(ctx, target)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}

	s.log.Info("user deleted", "caller", caller.Username, "target", target)
	return nil
}
