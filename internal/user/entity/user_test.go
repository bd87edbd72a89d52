package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	r, err = ParseRole(" USER ")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, r)

	_, err = ParseRole("root")
	require.Error(t, err)
}

func TestViewOmitsPasswordHash(t *testing.T) {
	u := &User{
		ID:           1234567890123456789,
		Firstname:    "Ada",
		Lastname:     "Lovelace",
		Email:        "ada@example.com",
		PasswordHash: "$2a$10$secret",
		Role:         RoleUser,
		Enabled:      true,
	}
	b, err := json.Marshal(u.View())
	require.NoError(t, err)
	assert.NotContains(t, string(b), "secret")
	assert.Contains(t, string(b), `"id":"1234567890123456789"`)
	assert.Contains(t, string(b), `"role":"USER"`)
}

func TestAuthorities(t *testing.T) {
	u := &User{Role: RoleAdmin}
	assert.Equal(t, []string{"ROLE_ADMIN"}, u.Authorities())
}
