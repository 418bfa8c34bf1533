package policy

import (
	"testing"

	"authd/cmd/credential"
)

func TestAuthorize(t *testing.T) {
	alice := Caller{Username: "alice", Authority: credential.AuthorityUser}
	root := Caller{Username: "root", Authority: credential.AuthorityAdmin}

	cases := []struct {
		name   string
		caller Caller
		action Action
		target string
		want   bool
	}{
		{"self password change allowed", alice, ActionChangePassword, "alice", true},
		{"password change for other denied", alice, ActionChangePassword, "bob", false},
		{"self authority change denied", alice, ActionChangeAuthority, "alice", false},
		{"self delete denied", alice, ActionDeleteUser, "alice", false},

		{"admin changes other password", root, ActionChangePassword, "alice", true},
		{"admin changes own password", root, ActionChangePassword, "root", true},
		{"admin changes authority", root, ActionChangeAuthority, "alice", true},
		{"admin changes own authority", root, ActionChangeAuthority, "root", true},
		{"admin deletes", root, ActionDeleteUser, "alice", true},

		{"anonymous denied", Caller{}, ActionChangePassword, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Authorize(tc.caller, tc.action, tc.target)
			if got.Allowed != tc.want {
				t.Fatalf("Authorize(%v, %s, %q) = %+v, want allowed=%v",
					tc.caller, tc.action, tc.target, got, tc.want)
			}
			if got.Reason == "" {
				t.Fatal("decision missing reason")
			}
		})
	}
}

func TestActionString(t *testing.T) {
	if ActionChangeAuthority.String() != "change_authority" {
		t.Fatalf("unexpected label: %s", ActionChangeAuthority)
	}
	if Action(99).String() != "action(99)" {
		t.Fatalf("unexpected fallback label: %s", Action(99))
	}
}
