// Package policy holds the pure authorization rules for credential
// administration. It has no I/O and no clock; decisions are a function of the
// caller's identity and the requested action alone, which keeps the rules
// trivially testable.
package policy

import (
	"fmt"

	"authd/cmd/credential"
)

// Action is an administrative operation on a credential record.
type Action int

const (
	ActionChangePassword Action = iota
	ActionChangeAuthority
	ActionDeleteUser
)

func (a Action) String() string {
	switch a {
	case ActionChangePassword:
		return "change_password"
	case ActionChangeAuthority:
		return "change_authority"
	case ActionDeleteUser:
		return "delete_user"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Caller is the authenticated identity requesting an action.
type Caller struct {
	Username  string
	Authority credential.AuthorityLevel
}

// Decision explains an authorization outcome. Reason is a short stable label
// intended for audit logs, never for end users.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allowed: false, Reason: reason} }

// Authorize decides whether caller may perform action on the credential named
// by target. Rules, in order:
//
//  1. Any caller may change their own password.
//  2. Admins may perform any action on any target, their own record included.
//  3. Everything else is denied.
//
// Note rule 1 covers passwords only. A non-admin changing their own authority
// falls through to rule 3; privilege changes always require an admin.
func Authorize(caller Caller, action Action, target string) Decision {
	if caller.Username == "" {
		return deny("anonymous")
	}

	if action == ActionChangePassword && caller.Username == target {
		return allow("self_password_change")
	}

	if caller.Authority.AtLeast(credential.AuthorityAdmin) {
		return allow("admin")
	}

	return deny("insufficient_authority")
}
