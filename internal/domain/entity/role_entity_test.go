package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in     string
		want   Role
		wantOK bool
	}{
		{"", RoleUser, true},
		{"user", RoleUser, true},
		{"admin", RoleAdmin, true},
		{" admin ", RoleAdmin, true},
		{"publisher", Role("publisher"), false},
		{"Admin", Role("Admin"), false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRole(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoleSet_Allows(t *testing.T) {
	adminOnly := NewRoleSet(RoleAdmin)
	assert.True(t, adminOnly.Allows(RoleAdmin))
	assert.False(t, adminOnly.Allows(RoleUser))
	assert.False(t, adminOnly.Allows(Role("")))

	everyone := NewRoleSet(Roles...)
	for _, r := range Roles {
		assert.True(t, everyone.Allows(r), r)
	}
	assert.False(t, everyone.Allows(Role("root")))

	assert.False(t, NewRoleSet().Allows(RoleUser))
}

func TestUser_ResetTokenFields(t *testing.T) {
	u := &User{Name: "A", Email: "a@x.com", Role: RoleUser}
	assert.False(t, u.HasResetToken())

	exp := time.Now().Add(10 * time.Minute)
	u.SetResetToken("abc", exp)
	assert.True(t, u.HasResetToken())
	assert.Equal(t, "abc", *u.ResetTokenHash)
	assert.NoError(t, u.Validate())

	c := u.Clone()
	*c.ResetTokenHash = "changed"
	assert.Equal(t, "abc", *u.ResetTokenHash)

	u.ClearResetToken()
	assert.False(t, u.HasResetToken())
	assert.Nil(t, u.ResetTokenHash)
	assert.Nil(t, u.ResetTokenExpiry)
}

func TestUser_Validate(t *testing.T) {
	h := "x"
	tests := []struct {
		name string
		u    User
		want error
	}{
		{"ok", User{Name: "A", Email: "a@x.com", Role: RoleAdmin}, nil},
		{"no name", User{Email: "a@x.com", Role: RoleUser}, ErrNameRequired},
		{"no email", User{Name: "A", Role: RoleUser}, ErrEmailRequired},
		{"bad role", User{Name: "A", Email: "a@x.com", Role: "root"}, ErrInvalidRole},
		{"half reset", User{Name: "A", Email: "a@x.com", Role: RoleUser, ResetTokenHash: &h}, ErrResetFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.u.Validate(), tt.want)
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.com "))
}
