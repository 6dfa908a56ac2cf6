// Package auth verifies per-user API tokens provisioned in configuration.
package auth

import (
	"crypto/subtle"
	"strings"
)

// Credential pairs a user with their API token. Admin credentials may
// additionally trigger registration and garbage collection.
type Credential struct {
	User  string
	Token string
	Admin bool
}

// Verifier holds the provisioned credential table.
type Verifier struct {
	byUser map[string]Credential
}

// NewVerifier indexes the credential table by user.
func NewVerifier(creds []Credential) *Verifier {
	byUser := make(map[string]Credential, len(creds))
	for _, c := range creds {
		byUser[c.User] = c
	}
	return &Verifier{byUser: byUser}
}

func constantTimeEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Verify checks the presented token against the user's provisioned one.
func (v *Verifier) Verify(user, token string) bool {
	c, ok := v.byUser[strings.TrimSpace(user)]
	if !ok {
		return false
	}
	return constantTimeEqual(c.Token, strings.TrimSpace(token))
}

// IsAdmin reports whether the user holds an admin credential. It does not
// verify the token; call Verify first.
func (v *Verifier) IsAdmin(user string) bool {
	c, ok := v.byUser[strings.TrimSpace(user)]
	return ok && c.Admin
}
