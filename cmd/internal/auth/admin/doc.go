// Package admin implements credential administration: registering users,
// changing passwords and authority, and deleting users.
//
// Register is open to anyone and always creates a base-authority user. The
// remaining operations take the caller's resolved identity, consult the pure
// rules in the policy package, and only then touch the credential store.
// Authorization failures are reported before target existence, so a caller
// without rights cannot probe which usernames exist.
package admin
