package access

import "crypto/subtle"

// Gate compares a submitted key against one fixed secret.
type Gate struct {
	secret []byte
}

// NewGate returns a Gate for the given secret. An empty secret never matches.
func NewGate(secret string) *Gate {
	return &Gate{secret: []byte(secret)}
}

// Check reports whether key equals the secret exactly.
func (g *Gate) Check(key string) bool {
	if g == nil || len(g.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), g.secret) == 1
}
