package core

import (
	"context"
	"errors"
	"fmt"
)

// Role tags are carried on connections for event authorization only; the
// service never branches behavior on them.
const (
	RoleCustomer = "customer"
	RoleWorker   = "worker"
	RoleAdmin    = "admin"
)

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (u User) Validate() error {
	if u.ID == "" || u.Name == "" || u.Password == "" {
		return errors.New("id, name and password are required")
	}
	switch u.Role {
	case RoleCustomer, RoleWorker, RoleAdmin:
	default:
		return fmt.Errorf("unknown role: %s", u.Role)
	}
	return nil
}

type UserWithoutSecrets struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type UserStore interface {
	CreateUser(ctx context.Context, user User) error

	GetUserByID(ctx context.Context, id string) (*UserWithoutSecrets, error)

	ComparePassword(ctx context.Context, id, password string) (bool, error)
}
