// Package api exposes the credential service over HTTP.
//
// Routes:
//
//	POST   /login                          password login, returns a token
//	POST   /logout                         clears the session cookie
//	GET    /api/authenticate               resolves the caller's identity
//	POST   /api/users                      registers a user (open)
//	PUT    /api/users/{username}/password  changes a password
//	PUT    /api/users/{username}/authority changes an authority level (admin)
//	DELETE /api/users/{username}           deletes a user (admin)
//
// Tokens travel in the Authorization header as a Bearer credential; when the
// cookie transport is enabled, login additionally sets an HttpOnly cookie and
// requests may authenticate with either.
package api
