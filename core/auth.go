package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Session struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IdentityVerifier is the identity collaborator consulted during connection
// registration: it maps an auth token to a user and role, or rejects it.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Session, error)
}

type AuthStore interface {
	IdentityVerifier

	// NewSession verifies credentials and issues a signed token.
	NewSession(ctx context.Context, userID, password string) (*Session, error)
}

// TokenAuthStore issues and verifies stateless HS256 tokens backed by the
// user store. There is no revocation list; tokens are valid until expiry.
type TokenAuthStore struct {
	tokenExp  time.Duration
	secret    []byte
	userStore UserStore
}

type AuthOption func(*TokenAuthStore)

func WithTokenExp(exp time.Duration) AuthOption {
	return func(a *TokenAuthStore) {
		a.tokenExp = exp
	}
}

func NewTokenAuthStore(userStore UserStore, secret []byte, opts ...AuthOption) *TokenAuthStore {
	auth := &TokenAuthStore{
		tokenExp:  time.Hour * 24,
		secret:    secret,
		userStore: userStore,
	}
	for _, opt := range opts {
		opt(auth)
	}
	return auth
}

func (a *TokenAuthStore) NewSession(ctx context.Context, userID, password string) (*Session, error) {
	user, err := a.userStore.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	if user == nil {
		return nil, ErrBadCredentials
	}

	ok, err := a.userStore.ComparePassword(ctx, userID, password)
	if err != nil {
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return nil, ErrBadCredentials
	}

	token, exp, err := NewToken(*user, a.tokenExp, a.secret)
	if err != nil {
		return nil, fmt.Errorf("creating token: %w", err)
	}

	return &Session{
		UserID:    user.ID,
		Role:      user.Role,
		Token:     token,
		ExpiresAt: exp,
	}, nil
}

func (a *TokenAuthStore) Verify(ctx context.Context, token string) (*Session, error) {
	claims, err := VerifyToken(token, a.secret)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrTokenInvalid) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("verifying token: %w", err)
	}

	return &Session{
		UserID: claims.UserID,
		Role:   claims.Role,
		Token:  token,
	}, nil
}
