package entity

import (
	"fmt"
	"strings"
	"time"
)

// Role is the coarse authorization level of an account.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleUser, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Authority is the name under which a role is granted to a request identity.
func (r Role) Authority() string { return "ROLE_" + string(r) }

// User represents an account row in the `users` table.
// Email is the unique, case-sensitive login key and the token subject.
type User struct {
	ID           int64     `db:"id"`
	Firstname    string    `db:"firstname"`
	Lastname     string    `db:"lastname"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         Role      `db:"role"`
	Enabled      bool      `db:"enabled"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Authorities lists the granted authorities derived from the current role.
func (u *User) Authorities() []string {
	return []string{u.Role.Authority()}
}

// View returns the projection that is safe to hand to clients.
func (u *User) View() PublicView {
	return PublicView{
		ID:        u.ID,
		Firstname: u.Firstname,
		Lastname:  u.Lastname,
		Email:     u.Email,
		Role:      u.Role,
		Enabled:   u.Enabled,
	}
}

// PublicView is the client-facing projection of a user. It never carries the
// password hash. IDs are snowflakes and exceed the JSON safe integer range, so
// they are encoded as strings.
type PublicView struct {
	ID        int64  `json:"id,string"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	Enabled   bool   `json:"enabled"`
}
