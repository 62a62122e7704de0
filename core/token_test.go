package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	secret := []byte("secret")
	user := UserWithoutSecrets{
		ID:   "alice",
		Name: "Alice",
		Role: RoleCustomer,
	}

	t.Run("valid token", func(t *testing.T) {
		before := time.Now()
		token, expiresAt, err := NewToken(user, time.Hour, secret)
		require.Nil(t, err)
		require.NotEmpty(t, token)
		require.True(t, expiresAt.After(before))

		claims, err := VerifyToken(token, secret)
		require.Nil(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, user.Role, claims.Role)
	})

	t.Run("expired token", func(t *testing.T) {
		token, _, err := NewToken(user, -time.Minute, secret)
		require.Nil(t, err)

		_, err = VerifyToken(token, secret)
		require.NotNil(t, err)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, _, err := NewToken(user, time.Hour, secret)
		require.Nil(t, err)

		_, err = VerifyToken(token, []byte("other secret"))
		require.NotNil(t, err)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := VerifyToken("not-a-token", secret)
		assert.NotNil(t, err)
	})
}

func TestTokenAuthStore(t *testing.T) {
	f := NewBaseFixture(t)
	defer f.tearDown()
	userStore := NewSQLiteUserStore(f.db)
	auth := NewTokenAuthStore(userStore, []byte("secret"))

	seedUsers(f.ctx, t, userStore,
		User{ID: "auth-alice", Name: "Alice", Role: RoleCustomer, Password: "password"})

	t.Run("signin and verify round trip", func(t *testing.T) {
		session, err := auth.NewSession(f.ctx, "auth-alice", "password")
		require.Nil(t, err)
		require.NotEmpty(t, session.Token)
		assert.Equal(t, "auth-alice", session.UserID)
		assert.Equal(t, RoleCustomer, session.Role)

		verified, err := auth.Verify(f.ctx, session.Token)
		require.Nil(t, err)
		assert.Equal(t, session.UserID, verified.UserID)
		assert.Equal(t, session.Role, verified.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := auth.NewSession(f.ctx, "auth-alice", "wrong")
		assert.ErrorIs(t, err, ErrBadCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := auth.NewSession(f.ctx, "nobody", "password")
		assert.ErrorIs(t, err, ErrBadCredentials)
	})

	t.Run("expired session", func(t *testing.T) {
		shortAuth := NewTokenAuthStore(userStore, []byte("secret"), WithTokenExp(-time.Minute))
		session, err := shortAuth.NewSession(f.ctx, "auth-alice", "password")
		require.Nil(t, err)

		_, err = shortAuth.Verify(f.ctx, session.Token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}
