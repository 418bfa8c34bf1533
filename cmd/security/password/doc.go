// Package password provides one-way password hashing for authd.
//
// The Hasher interface is the pluggable boundary the rest of the system
// depends on. Two implementations are provided:
//   - Argon2id with a PHC-style encoded string format (the default)
//   - bcrypt, for deployments migrating from bcrypt-hashed credentials
//
// Security notes:
// - Hash strings are treated as untrusted input during Verify and are
//   validated accordingly.
// - Argon2id verification refuses hashes with parameters that exceed
//   reasonable bounds (anti-DoS).
// - Comparison of derived keys is constant-time.
package password
