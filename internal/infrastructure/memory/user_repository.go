package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/go-auth-service/internal/domain/entity"
	"github.com/oksasatya/go-auth-service/internal/domain/repository"
)

// UserRepository keeps users in process memory. Every value crossing its
// boundary is cloned, so callers never alias stored records.
type UserRepository struct {
	mu    sync.RWMutex
	byID  map[string]*entity.User
	email map[string]string
	now   func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:  make(map[string]*entity.User),
		email: make(map[string]string),
		now:   time.Now,
	}
}

func (r *UserRepository) FindByEmail(_ context.Context, email string, withPassword bool) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.email[entity.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return project(r.byID[id], withPassword), nil
}

func (r *UserRepository) FindByID(_ context.Context, id string, withPassword bool) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return project(u, withPassword), nil
}

func (r *UserRepository) FindByResetToken(_ context.Context, tokenHash string, now time.Time) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if u.HasResetToken() && *u.ResetTokenHash == tokenHash && u.ResetTokenExpiry.After(now) {
			return project(u, false), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) Create(_ context.Context, u *entity.User) error {
	u.Email = entity.NormalizeEmail(u.Email)
	if err := repository.ValidateUser(u); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.email[u.Email]; taken {
		return repository.ErrDuplicateEmail
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := r.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	r.byID[u.ID] = u.Clone()
	r.email[u.Email] = u.ID
	return nil
}

func (r *UserRepository) UpdateByID(_ context.Context, id string, upd repository.UserUpdate, opts repository.SaveOptions) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	next := cur.Clone()
	if upd.Name != nil {
		next.Name = *upd.Name
	}
	if upd.Email != nil {
		next.Email = entity.NormalizeEmail(*upd.Email)
	}
	if upd.Role != nil {
		next.Role = *upd.Role
	}
	if err := r.put(cur, next, opts); err != nil {
		return nil, err
	}
	return project(next, false), nil
}

func (r *UserRepository) Save(_ context.Context, u *entity.User, opts repository.SaveOptions) error {
	if opts.Validate {
		if err := repository.ValidateCredentials(u); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	next := cur.Clone()
	if u.PasswordHash != "" {
		next.PasswordHash = u.PasswordHash
	}
	next.ResetTokenHash, next.ResetTokenExpiry = nil, nil
	if u.HasResetToken() {
		next.SetResetToken(*u.ResetTokenHash, *u.ResetTokenExpiry)
	}
	next.UpdatedAt = r.now().UTC()
	r.byID[next.ID] = next

	pw := u.PasswordHash
	*u = *next.Clone()
	u.PasswordHash = pw
	return nil
}

func (r *UserRepository) ClearResetToken(_ context.Context, id, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[id]
	if !ok || !cur.HasResetToken() || *cur.ResetTokenHash != tokenHash {
		return repository.ErrNotFound
	}
	next := cur.Clone()
	next.ClearResetToken()
	next.UpdatedAt = r.now().UTC()
	r.byID[id] = next
	return nil
}

func (r *UserRepository) ConsumeResetToken(_ context.Context, tokenHash string, now time.Time, passwordHash string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cur := range r.byID {
		if !cur.HasResetToken() || *cur.ResetTokenHash != tokenHash || !cur.ResetTokenExpiry.After(now) {
			continue
		}
		next := cur.Clone()
		next.PasswordHash = passwordHash
		next.ClearResetToken()
		next.UpdatedAt = r.now().UTC()
		r.byID[id] = next
		return project(next, false), nil
	}
	return nil, repository.ErrNotFound
}

// put replaces cur with next, keeping the email index unique. Callers hold mu.
func (r *UserRepository) put(cur, next *entity.User, opts repository.SaveOptions) error {
	if opts.Validate {
		if err := repository.ValidateUser(next); err != nil {
			return err
		}
	}
	if next.Email != cur.Email {
		if _, taken := r.email[next.Email]; taken {
			return repository.ErrDuplicateEmail
		}
		delete(r.email, cur.Email)
		r.email[next.Email] = next.ID
	}
	next.UpdatedAt = r.now().UTC()
	r.byID[next.ID] = next
	return nil
}

func (r *UserRepository) DeleteByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.email, u.Email)
	return project(u, false), nil
}

// List orders by creation time, newest first.
func (r *UserRepository) List(_ context.Context, opts repository.ListOptions) ([]*entity.User, int, error) {
	r.mu.RLock()
	all := make([]*entity.User, 0, len(r.byID))
	for _, u := range r.byID {
		all = append(all, u)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := len(all)
	start := min(max(opts.Offset, 0), total)
	end := total
	if opts.Limit > 0 {
		end = min(start+opts.Limit, total)
	}
	out := make([]*entity.User, 0, end-start)
	for _, u := range all[start:end] {
		out = append(out, project(u, false))
	}
	return out, total, nil
}

func project(u *entity.User, withPassword bool) *entity.User {
	c := u.Clone()
	if !withPassword {
		c.PasswordHash = ""
	}
	return c
}

var _ repository.UserRepository = (*UserRepository)(nil)
