// Package session implements login and token resolution.
//
// Login exchanges a username/password pair for a signed PASETO v4.public
// token. Resolve verifies a presented token and re-reads the credential
// store, so authority changes and deletions take effect immediately rather
// than at token expiry.
//
// Transport (HTTP) integration is intentionally out of scope here.
package session
