package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oksasatya/go-auth-service/internal/domain/entity"
	"github.com/oksasatya/go-auth-service/internal/domain/repository"
)

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UserRepository struct {
	db DB
}

func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

func selectUser(withPassword bool) string {
	pw := "''"
	if withPassword {
		pw = "password_hash"
	}
	return `SELECT id, name, email, ` + pw + `, role, reset_token_hash, reset_token_expires_at, created_at, updated_at FROM users`
}

const returningUser = ` RETURNING id, name, email, '', role, reset_token_hash, reset_token_expires_at, created_at, updated_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	var (
		u    entity.User
		role string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role,
		&u.ResetTokenHash, &u.ResetTokenExpiry, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	u.Role = entity.Role(role)
	return &u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string, withPassword bool) (*entity.User, error) {
	return scanUser(r.db.QueryRow(ctx, selectUser(withPassword)+` WHERE email = $1`, entity.NormalizeEmail(email)))
}

func (r *UserRepository) FindByID(ctx context.Context, id string, withPassword bool) (*entity.User, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	return scanUser(r.db.QueryRow(ctx, selectUser(withPassword)+` WHERE id = $1`, id))
}

func (r *UserRepository) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*entity.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		selectUser(false)+` WHERE reset_token_hash = $1 AND reset_token_expires_at > $2`, tokenHash, now))
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	u.Email = entity.NormalizeEmail(u.Email)
	if err := repository.ValidateUser(u); err != nil {
		return err
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role, reset_token_hash, reset_token_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, u.Name, u.Email, u.PasswordHash, string(u.Role), u.ResetTokenHash, u.ResetTokenExpiry)
	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapWriteError(err)
	}
	return nil
}

// UpdateByID patches only the fields set in upd and returns the stored record.
func (r *UserRepository) UpdateByID(ctx context.Context, id string, upd repository.UserUpdate, opts repository.SaveOptions) (*entity.User, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	if opts.Validate {
		cur, err := r.FindByID(ctx, id, false)
		if err != nil {
			return nil, err
		}
		if upd.Name != nil {
			cur.Name = *upd.Name
		}
		if upd.Email != nil {
			cur.Email = *upd.Email
		}
		if upd.Role != nil {
			cur.Role = *upd.Role
		}
		if err := repository.ValidateUser(cur); err != nil {
			return nil, err
		}
	}

	sets := []string{"updated_at = now()"}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Email != nil {
		add("email", entity.NormalizeEmail(*upd.Email))
	}
	if upd.Role != nil {
		add("role", string(*upd.Role))
	}
	args = append(args, id)
	q := `UPDATE users SET ` + strings.Join(sets, ", ") + fmt.Sprintf(` WHERE id = $%d`, len(args)) + returningUser

	u, err := scanUser(r.db.QueryRow(ctx, q, args...))
	if err != nil {
		return nil, mapWriteError(err)
	}
	return u, nil
}

// Save writes the credential columns of u and refreshes u from the stored row.
// An empty PasswordHash keeps the stored one.
func (r *UserRepository) Save(ctx context.Context, u *entity.User, opts repository.SaveOptions) error {
	if !validID(u.ID) {
		return repository.ErrNotFound
	}
	if opts.Validate {
		if err := repository.ValidateCredentials(u); err != nil {
			return err
		}
	}
	stored, err := scanUser(r.db.QueryRow(ctx, `
		UPDATE users
		SET password_hash = COALESCE(NULLIF($1, ''), password_hash),
		    reset_token_hash = $2, reset_token_expires_at = $3, updated_at = now()
		WHERE id = $4`+returningUser,
		u.PasswordHash, u.ResetTokenHash, u.ResetTokenExpiry, u.ID))
	if err != nil {
		return mapWriteError(err)
	}
	stored.PasswordHash = u.PasswordHash
	*u = *stored
	return nil
}

// ClearResetToken clears the reset pair only while the row still holds tokenHash.
func (r *UserRepository) ClearResetToken(ctx context.Context, id, tokenHash string) error {
	if !validID(id) {
		return repository.ErrNotFound
	}
	var got string
	err := r.db.QueryRow(ctx, `
		UPDATE users
		SET reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = now()
		WHERE id = $1 AND reset_token_hash = $2
		RETURNING id`, id, tokenHash).Scan(&got)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

// ConsumeResetToken swaps the password and clears the token in a single
// conditional UPDATE; a concurrent consumer re-checks the WHERE clause and matches nothing.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (*entity.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `
		UPDATE users
		SET password_hash = $1, reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = now()
		WHERE reset_token_hash = $2 AND reset_token_expires_at > $3`+returningUser,
		passwordHash, tokenHash, now))
	if err != nil {
		return nil, mapWriteError(err)
	}
	return u, nil
}

func (r *UserRepository) DeleteByID(ctx context.Context, id string) (*entity.User, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	return scanUser(r.db.QueryRow(ctx, `DELETE FROM users WHERE id = $1`+returningUser, id))
}

// List orders by creation time, newest first.
func (r *UserRepository) List(ctx context.Context, opts repository.ListOptions) ([]*entity.User, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = total
	}
	rows, err := r.db.Query(ctx, selectUser(false)+` ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, max(opts.Offset, 0))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]*entity.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// validID filters ids postgres would reject as malformed uuids.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func mapWriteError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return repository.ErrDuplicateEmail
		case pgerrcode.CheckViolation:
			if pgErr.ConstraintName == "users_reset_token_pair" {
				return &repository.ValidationError{Field: "resetToken", Message: "hash and expiry must be set together"}
			}
			return &repository.ValidationError{Field: "role", Message: "must be one of: user, admin"}
		}
	}
	return err
}

var _ repository.UserRepository = (*UserRepository)(nil)
