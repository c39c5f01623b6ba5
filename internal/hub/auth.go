package hub

import (
	"fmt"
	"strings"
)

// AuthGate validates signup and login against the Store.
//
// Passwords are compared in plaintext, exactly as stored. This mirrors the
// data the application has always kept and must not ship to production as is.
type AuthGate struct {
	store  *Store
	logger Logger
}

// NewAuthGate creates an AuthGate over store.
func NewAuthGate(store *Store, logger Logger) *AuthGate {
	return &AuthGate{store: store, logger: logger}
}

// Signup creates a new account. See Store.Create for validation rules.
func (g *AuthGate) Signup(username, password, bio string) error {
	return g.store.Create(username, password, bio)
}

// Login returns a session bound to username when the password matches.
func (g *AuthGate) Login(username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	var ok bool
	g.store.view(func() {
		acct := g.store.lookup(username)
		ok = acct != nil && acct.Password == password
	})
	if !ok {
		g.logger.Warn("login rejected", "user", username)
		return nil, ErrInvalidCredentials
	}

	g.logger.Info("logged in", "user", username)
	return &Session{username: username}, nil
}

// Logout clears the session. It is safe to call on a nil or already
// anonymous session.
func (g *AuthGate) Logout(s *Session) {
	if !s.Authenticated() {
		return
	}
	g.logger.Info("logged out", "user", s.username)
	s.username = ""
}
