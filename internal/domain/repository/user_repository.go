package repository

import (
	"context"
	"errors"
	"time"

	"github.com/oksasatya/go-auth-service/internal/domain/entity"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// ValidationError reports a record-level constraint violation on a validated write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

// SaveOptions controls whether record validation runs before a write.
type SaveOptions struct {
	Validate bool
}

// UserUpdate carries the fields UpdateByID may change; nil means untouched.
type UserUpdate struct {
	Name  *string
	Email *string
	Role  *entity.Role
}

type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository defines the interface for user-related database operations.
// Lookups that match nothing return ErrNotFound.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string, withPassword bool) (*entity.User, error)
	FindByID(ctx context.Context, id string, withPassword bool) (*entity.User, error)
	// FindByResetToken returns the user holding tokenHash whose expiry is after now.
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*entity.User, error)
	Create(ctx context.Context, u *entity.User) error
	UpdateByID(ctx context.Context, id string, upd UserUpdate, opts SaveOptions) (*entity.User, error)
	// Save writes only the credential columns of u: the reset token pair, and
	// PasswordHash when non-empty. Name, email and role are never written; u is
	// refreshed from the stored record.
	Save(ctx context.Context, u *entity.User, opts SaveOptions) error
	// ClearResetToken removes the reset token of user id only while it still holds tokenHash.
	ClearResetToken(ctx context.Context, id, tokenHash string) error
	// ConsumeResetToken sets passwordHash and clears the token in one conditional write.
	// It fails with ErrNotFound unless the token is held and expires after now.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (*entity.User, error)
	DeleteByID(ctx context.Context, id string) (*entity.User, error)
	List(ctx context.Context, opts ListOptions) ([]*entity.User, int, error)
}

// ValidateCredentials checks the columns Save writes.
func ValidateCredentials(u *entity.User) error {
	if (u.ResetTokenHash == nil) != (u.ResetTokenExpiry == nil) {
		return &ValidationError{Field: "resetToken", Message: "hash and expiry must be set together"}
	}
	return nil
}

// ValidateUser maps entity validation failures to a field-level ValidationError.
func ValidateUser(u *entity.User) error {
	err := u.Validate()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, entity.ErrNameRequired):
		return &ValidationError{Field: "name", Message: "is required"}
	case errors.Is(err, entity.ErrEmailRequired):
		return &ValidationError{Field: "email", Message: "is required"}
	case errors.Is(err, entity.ErrInvalidRole):
		return &ValidationError{Field: "role", Message: "must be one of: user, admin"}
	default:
		return &ValidationError{Field: "resetToken", Message: err.Error()}
	}
}
