// Package auth gates organizer logins behind the configured password.
package auth

import "crypto/subtle"

// Gate validates organizer credentials before any organizer-role event is
// accepted.
type Gate struct {
	password []byte
}

func NewGate(password string) *Gate {
	return &Gate{password: []byte(password)}
}

// Validate compares in constant time.
func (g *Gate) Validate(password string) bool {
	return subtle.ConstantTimeCompare(g.password, []byte(password)) == 1
}
