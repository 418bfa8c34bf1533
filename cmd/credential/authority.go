package credential

import "fmt"

// AuthorityLevel is the coarse role gating administrative actions.
// Levels are totally ordered: AuthorityAdmin covers every AuthorityUser privilege.
type AuthorityLevel int

const (
	// AuthorityUser is the default level assigned at registration.
	AuthorityUser AuthorityLevel = 0
	// AuthorityAdmin may act on any account.
	AuthorityAdmin AuthorityLevel = 1
)

// String implements fmt.Stringer.
func (a AuthorityLevel) String() string {
	switch a {
	case AuthorityUser:
		return "USER"
	case AuthorityAdmin:
		return "ADMIN"
	default:
		return fmt.Sprintf("AuthorityLevel(%d)", int(a))
	}
}

// Valid reports whether a is a known authority level.
func (a AuthorityLevel) Valid() bool {
	return a == AuthorityUser || a == AuthorityAdmin
}

// AtLeast reports whether a grants every privilege of b.
func (a AuthorityLevel) AtLeast(b AuthorityLevel) bool { return a >= b }

// ParseAuthority maps the wire names "USER"/"ADMIN" to an AuthorityLevel.
func ParseAuthority(s string) (AuthorityLevel, error) {
	switch s {
	case "USER":
		return AuthorityUser, nil
	case "ADMIN":
		return AuthorityAdmin, nil
	default:
		return 0, OpError{Op: "credential.ParseAuthority", Kind: ErrInvalidInput, Msg: "unknown authority level"}
	}
}
