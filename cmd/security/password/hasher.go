package password

// Hasher is the pluggable one-way hash boundary.
//
// Hash validates the plaintext against the configured policy before hashing.
// Verify reports (true, nil) for a match, (false, nil) for a mismatch, and
// (false, ErrInvalidHash) for malformed or unsupported encoded hashes.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) (bool, error)
}
