// Package credential implements authd's credential store.
//
// It defines the canonical Credential record (username, password hash,
// authority level), the Store persistence boundary, and Postgres and SQLite
// implementations of it.
//
// This package is intentionally dependency-light and security-first.
package credential
