package entity

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNameRequired  = errors.New("name is required")
	ErrEmailRequired = errors.New("email is required")
	ErrInvalidRole   = errors.New("invalid role")
	ErrResetFields   = errors.New("reset token hash and expiry must be set together")
)

// User is the aggregate root for the principal domain.
// Passwords are stored as bcrypt hashes in PasswordHash, which is never serialized.
// The reset token fields hold only the sha256 digest of the token handed to the user.
type User struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	Role             Role       `json:"role"`
	ResetTokenHash   *string    `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SetResetToken stores the hashed reset token together with its expiry.
func (u *User) SetResetToken(hash string, expiry time.Time) {
	h := hash
	e := expiry
	u.ResetTokenHash = &h
	u.ResetTokenExpiry = &e
}

// ClearResetToken removes both reset token fields.
func (u *User) ClearResetToken() {
	u.ResetTokenHash = nil
	u.ResetTokenExpiry = nil
}

// HasResetToken reports whether a reset token is currently stored.
func (u *User) HasResetToken() bool {
	return u.ResetTokenHash != nil && u.ResetTokenExpiry != nil
}

// Validate checks the record-level constraints a store enforces on validated writes.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrNameRequired
	}
	if u.Email == "" {
		return ErrEmailRequired
	}
	if !u.Role.Valid() {
		return ErrInvalidRole
	}
	if (u.ResetTokenHash == nil) != (u.ResetTokenExpiry == nil) {
		return ErrResetFields
	}
	return nil
}

// Clone returns a deep copy, so callers never share the reset pointers.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.ResetTokenHash != nil {
		h := *u.ResetTokenHash
		c.ResetTokenHash = &h
	}
	if u.ResetTokenExpiry != nil {
		e := *u.ResetTokenExpiry
		c.ResetTokenExpiry = &e
	}
	return &c
}
