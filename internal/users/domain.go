package users

import (
	"time"

	"github.com/clearline-consulting/clearline/internal/authz"
)

// User is a backoffice account: one identity row plus its profile.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      authz.Role
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser carries the fields needed to create an account.
type NewUser struct {
	Email    string
	Name     string
	Password string
	Role     authz.Role
}
