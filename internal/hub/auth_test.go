package hub_test

import (
	"errors"
	"testing"

	"habithub/internal/hub"
	"habithub/internal/testutil"
)

func TestAuthGate_Login(t *testing.T) {
	h := testutil.NewHub(t)
	if err := h.Auth.Signup("amy", "secret", "hi"); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"correct", "amy", "secret", nil},
		{"surrounding spaces in username", " amy ", "secret", nil},
		{"wrong password", "amy", "nope", hub.ErrInvalidCredentials},
		{"password is exact", "amy", "secret ", hub.ErrInvalidCredentials},
		{"case-sensitive username", "Amy", "secret", hub.ErrInvalidCredentials},
		{"unknown user", "bob", "secret", hub.ErrInvalidCredentials},
		{"empty username", "", "secret", hub.ErrInvalidInput},
		{"empty password", "amy", "", hub.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := h.Auth.Login(tt.username, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if s != nil {
					t.Errorf("Login() session = %v, want nil on error", s)
				}
				return
			}
			if s.Username() != "amy" || !s.Authenticated() {
				t.Errorf("Login() session user = %q, want amy", s.Username())
			}
		})
	}
}

func TestAuthGate_Logout(t *testing.T) {
	h := testutil.NewHub(t)
	s := h.SignupAndLogin(t, "amy")

	h.Auth.Logout(s)
	if s.Authenticated() || s.Username() != "" {
		t.Errorf("session still bound to %q after Logout", s.Username())
	}
	if _, err := h.Feeds.HomeFeed(s); !errors.Is(err, hub.ErrUnauthenticated) {
		t.Errorf("HomeFeed() after Logout error = %v, want ErrUnauthenticated", err)
	}

	// Logging out twice, or a nil session, is harmless.
	h.Auth.Logout(s)
	h.Auth.Logout(nil)
}

func TestAuthGate_Signup_DoesNotLogIn(t *testing.T) {
	h := testutil.NewHub(t)
	if err := h.Auth.Signup("amy", "pw", ""); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if err := h.Auth.Signup("amy", "pw", ""); !errors.Is(err, hub.ErrDuplicateUser) {
		t.Errorf("Signup(duplicate) error = %v, want ErrDuplicateUser", err)
	}
	if h.Store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", h.Store.Len())
	}
}
