package user

import (
	"time"

	"github.com/google/uuid"
)

// Role is the account role.
type Role string

const (
	RoleStudent  Role = "student"
	RoleEducator Role = "educator"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleEducator
}

type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash *string   `json:"-"` // nil for accounts created through Google
	Role         Role      `json:"role"`
	PhotoURL     *string   `json:"photoUrl,omitempty"`
	InviteCode   *string   `json:"-"`

	ResetOTP          *string    `json:"-"`
	ResetOTPExpiresAt *time.Time `json:"-"`
	IsOTPVerified     bool       `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Profile is the subset of a user that is safe to return to clients.
type Profile struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
	PhotoURL string    `json:"photoUrl"`
}

// Profile returns the public profile of the user.
func (u *User) Profile() Profile {
	p := Profile{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
	if u.PhotoURL != nil {
		p.PhotoURL = *u.PhotoURL
	}
	return p
}
