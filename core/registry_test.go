package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegister(t *testing.T) {

	t.Run("register issues a fresh connection id", func(t *testing.T) {
		r := NewRegistry()

		first, err := r.Register("alice", RoleCustomer)
		require.Nil(t, err)
		require.NotEmpty(t, first.ID)

		second, err := r.Register("alice", RoleCustomer)
		require.Nil(t, err)
		assert.NotEqual(t, first.ID, second.ID)

		conn, ok := r.Lookup(first.ID)
		require.True(t, ok)
		assert.Equal(t, "alice", conn.UserID)
		assert.Equal(t, RoleCustomer, conn.Role)
		assert.False(t, conn.ConnectedAt.IsZero())
	})

	t.Run("register without identity fails closed", func(t *testing.T) {
		r := NewRegistry()

		conn, err := r.Register("", RoleCustomer)
		require.NotNil(t, err)
		assert.ErrorIs(t, err, ErrAuthenticationRequired)
		assert.Zero(t, conn)
	})
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()

	conn, err := r.Register("alice", RoleCustomer)
	require.Nil(t, err)

	got, ok := r.Unregister(conn.ID)
	require.True(t, ok)
	assert.Equal(t, conn.ID, got.ID)

	_, ok = r.Lookup(conn.ID)
	assert.False(t, ok)

	// second unregister is a no-op
	_, ok = r.Unregister(conn.ID)
	assert.False(t, ok)
}

func TestRegistryConnectionsForUser(t *testing.T) {
	r := NewRegistry()

	a1, _ := r.Register("alice", RoleCustomer)
	a2, _ := r.Register("alice", RoleCustomer)
	b1, _ := r.Register("bob", RoleWorker)

	ids := r.ConnectionsForUser("alice")
	assert.ElementsMatch(t, []string{a1.ID, a2.ID}, ids)
	assert.True(t, r.IsUserConnected("alice"))

	r.Unregister(a1.ID)
	assert.True(t, r.IsUserConnected("alice"), "one tab left")

	r.Unregister(a2.ID)
	assert.False(t, r.IsUserConnected("alice"))
	assert.Nil(t, r.ConnectionsForUser("alice"))

	assert.ElementsMatch(t, []string{b1.ID}, r.ConnectionsForUser("bob"))
}
