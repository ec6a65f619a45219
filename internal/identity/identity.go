// Package identity authenticates users and serves the current user.
package identity

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kwai-club/kwai/pkg/jsonapi"
)

// UserType is the resource type name of users.
const UserType = "users"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// User is an account that can log in. The password hash is never rendered.
type User struct {
	ID        int       `jsonapi:"-"`
	UUID      uuid.UUID `jsonapi:"id"`
	Email     string
	FirstName string
	LastName  string
	Password  string     `jsonapi:"-"`
	LastLogin *time.Time `jsonapi:"-"`
}

// Resources declares the identity read models.
func Resources() []jsonapi.Declaration {
	return []jsonapi.Declaration{
		jsonapi.Infer[User](UserType),
	}
}
