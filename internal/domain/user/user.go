package user

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// User is the contact card of a platform user, read from the identity service's table.
type User struct {
	id        uuid.UUID
	email     string
	firstName string
	lastName  string
}

// Reconstruct rebuilds a User from persistence.
func Reconstruct(id uuid.UUID, email, firstName, lastName string) *User {
	return &User{id: id, email: email, firstName: firstName, lastName: lastName}
}

func (u *User) ID() uuid.UUID { return u.id }
func (u *User) Email() string { return u.email }

// DisplayName is "First Last", falling back to the email address.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.firstName + " " + u.lastName)
	if name == "" {
		return u.email
	}
	return name
}

// HasEmail reports whether the user can receive email.
func (u *User) HasEmail() bool {
	return strings.Contains(u.email, "@")
}

// UserDirectory resolves users by id.
type UserDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
}
