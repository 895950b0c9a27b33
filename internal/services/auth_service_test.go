package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type authStubStore struct {
	users map[string]*User
}

func newAuthStubStore() *authStubStore {
	return &authStubStore{users: map[string]*User{}}
}

func (s *authStubStore) FindUserByEmail(_ context.Context, email string) (*User, error) {
	if u, ok := s.users[email]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, nil
}

func (s *authStubStore) InsertUser(_ context.Context, u *User) error {
	if _, ok := s.users[u.Email]; ok {
		return errors.New("duplicate user")
	}
	copy := *u
	s.users[u.Email] = &copy
	return nil
}

func TestAuthRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	store := newAuthStubStore()
	svc := NewAuthService(store, func(uid, email string, ttl time.Duration) (string, error) {
		return "token:" + uid + ":" + email, nil
	}, time.Hour)
	svc.now = func() time.Time { return time.Unix(0, 0) }
	svc.idGen = func(prefix string, n int) string { return prefix + "1234567" }

	res, err := svc.Register(ctx, " User@Example.com ", "Secret123")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if res.UserID != "u1234567" {
		t.Fatalf("unexpected user id %q", res.UserID)
	}
	if res.Token != "token:u1234567:user@example.com" {
		t.Fatalf("unexpected token %q", res.Token)
	}

	_, err = svc.Register(ctx, "user@example.com", "Secret123")
	if se, ok := AsServiceError(err); !ok || se.Code != ErrorConflict {
		t.Fatalf("expected conflict error on duplicate registration, got %v", err)
	}

	loginRes, err := svc.Login(ctx, "user@example.com", "Secret123")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if loginRes.Token == "" {
		t.Fatalf("expected token in login response")
	}

	if _, err := svc.Login(ctx, "user@example.com", "wrong"); err == nil {
		t.Fatalf("expected error for wrong password")
	}
	_, err = svc.Login(ctx, "missing@example.com", "Secret123")
	if se, ok := AsServiceError(err); !ok || se.Code != ErrorUnauthorized {
		t.Fatalf("expected unauthorized for missing user, got %v", err)
	}
}

func TestAuthValidation(t *testing.T) {
	svc := NewAuthService(newAuthStubStore(), func(uid, email string, ttl time.Duration) (string, error) {
		return "tok", nil
	}, 0)
	if svc.TokenTTL() != defaultTokenTTL {
		t.Fatalf("TokenTTL() = %v, want default", svc.TokenTTL())
	}
	if _, err := svc.Register(context.Background(), "", ""); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := svc.Login(context.Background(), "", ""); err == nil {
		t.Fatalf("expected validation error on login")
	}
}

func TestBootstrapAdminUsesSuppliedRandom(t *testing.T) {
	ctx := context.Background()
	store := newAuthStubStore()
	svc := NewAuthService(store, nil, time.Hour)

	random := bytes.NewReader(bytes.Repeat([]byte{0xAB}, 18))
	pw, created, err := svc.BootstrapAdmin(ctx, "admin@example.com", random)
	if err != nil || !created {
		t.Fatalf("BootstrapAdmin = %q, %v, %v", pw, created, err)
	}
	if pw != strings.Repeat("q6ur", 6) {
		t.Fatalf("password %q not derived from the random source", pw)
	}
	if u := store.users["admin@example.com"]; u == nil || !u.Admin {
		t.Fatalf("admin user not stored: %+v", u)
	}

	pw, created, err = svc.BootstrapAdmin(ctx, "admin@example.com", bytes.NewReader(nil))
	if err != nil || created || pw != "" {
		t.Fatalf("second bootstrap = %q, %v, %v; want no-op", pw, created, err)
	}

	if _, _, err := svc.BootstrapAdmin(ctx, "other@example.com", bytes.NewReader([]byte{1})); err == nil {
		t.Fatalf("expected error on short random source")
	}
}
