package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// UserStore returns nil, nil from FindUserByEmail when nobody has the address.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	InsertUser(ctx context.Context, u *User) error
}

type TokenSigner func(uid, email string, ttl time.Duration) (string, error)

type AuthService struct {
	store     UserStore
	now       func() time.Time
	idGen     func(prefix string, n int) string
	signToken TokenSigner
	tokenTTL  time.Duration
}

type AuthResult struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

const defaultTokenTTL = 30 * 24 * time.Hour

func NewAuthService(store UserStore, signer TokenSigner, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &AuthService{
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     func(prefix string, n int) string { return prefix + shortID(n) },
		signToken: signer,
		tokenTTL:  ttl,
	}
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	existing, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewConflictError("email exists")
	}
	u, err := s.newUser(email, password, false)
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertUser(ctx, u); err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	u, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(u.PassHash, []byte(password)); err != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	return s.issue(u)
}

// BootstrapAdmin creates the first admin account with a password drawn from
// random. It returns created=false and no password when the email is taken.
func (s *AuthService) BootstrapAdmin(ctx context.Context, email string, random io.Reader) (password string, created bool, err error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", false, NewInvalidError("admin email required")
	}
	existing, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return "", false, err
	}
	if existing != nil {
		return "", false, nil
	}
	buf := make([]byte, 18)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", false, fmt.Errorf("generate admin password: %w", err)
	}
	password = base64.RawURLEncoding.EncodeToString(buf)
	u, err := s.newUser(email, password, true)
	if err != nil {
		return "", false, err
	}
	if err := s.store.InsertUser(ctx, u); err != nil {
		return "", false, err
	}
	slog.Info("admin account created", slog.String("email", email), slog.String("user", u.ID))
	return password, true, nil
}

func (s *AuthService) newUser(email, password string, admin bool) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &User{ID: s.idGen("u", 7), Email: email, PassHash: hash, Admin: admin, CreatedAt: s.now()}, nil
}

func (s *AuthService) issue(u *User) (*AuthResult, error) {
	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	token, err := s.signToken(u.ID, u.Email, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, UserID: u.ID}, nil
}

func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}
