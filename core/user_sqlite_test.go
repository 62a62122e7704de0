package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {

	t.Run("create user successfully", func(t *testing.T) {
		f := NewBaseFixture(t)
		defer f.tearDown()
		store := NewSQLiteUserStore(f.db)

		user := User{ID: "create-alice", Name: "Alice", Role: RoleCustomer, Password: "password"}
		require.Nil(t, store.CreateUser(f.ctx, user))

		got, err := store.GetUserByID(f.ctx, user.ID)
		require.Nil(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, user.Name, got.Name)
		assert.Equal(t, RoleCustomer, got.Role)
	})

	t.Run("create duplicate user", func(t *testing.T) {
		f := NewBaseFixture(t)
		defer f.tearDown()
		store := NewSQLiteUserStore(f.db)

		user := User{ID: "dup-alice", Name: "Alice", Role: RoleCustomer, Password: "password"}
		require.Nil(t, store.CreateUser(f.ctx, user))

		err := store.CreateUser(f.ctx, user)
		require.NotNil(t, err)
		assert.Equal(t, ErrConflictedUser, err)
	})
}

func TestGetUserByID(t *testing.T) {
	f := NewBaseFixture(t)
	defer f.tearDown()
	store := NewSQLiteUserStore(f.db)

	got, err := store.GetUserByID(f.ctx, "nobody")
	require.Nil(t, err)
	assert.Nil(t, got, "missing user is not an error")
}

func TestComparePassword(t *testing.T) {
	f := NewBaseFixture(t)
	defer f.tearDown()
	store := NewSQLiteUserStore(f.db)

	seedUsers(f.ctx, t, store, User{ID: "cmp-alice", Name: "Alice", Role: RoleCustomer, Password: "password"})

	ok, err := store.ComparePassword(f.ctx, "cmp-alice", "password")
	require.Nil(t, err)
	assert.True(t, ok)

	ok, err = store.ComparePassword(f.ctx, "cmp-alice", "wrong")
	require.Nil(t, err)
	assert.False(t, ok)

	ok, err = store.ComparePassword(f.ctx, "nobody", "password")
	require.Nil(t, err)
	assert.False(t, ok)
}

func TestUserValidate(t *testing.T) {
	valid := User{ID: "alice", Name: "Alice", Role: RoleCustomer, Password: "password"}
	assert.Nil(t, valid.Validate())

	missing := valid
	missing.Password = ""
	assert.NotNil(t, missing.Validate())

	badRole := valid
	badRole.Role = "superuser"
	assert.NotNil(t, badRole.Validate())
}
