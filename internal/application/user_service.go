package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-auth-service/internal/domain/entity"
	repo "github.com/oksasatya/go-auth-service/internal/domain/repository"
	"github.com/oksasatya/go-auth-service/pkg/helpers"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
	maxSearchSize   = 50
)

// UserService is the administrative surface over the user store.
type UserService struct {
	Repo   repo.UserRepository
	Creds  *CredentialService
	Index  UserIndex
	Logger *logrus.Logger
}

func NewUserService(r repo.UserRepository, creds *CredentialService, idx UserIndex, logger *logrus.Logger) *UserService {
	if logger == nil {
		logger = helpers.NewNopLogger()
	}
	return &UserService{Repo: r, Creds: creds, Index: idx, Logger: logger}
}

type PageRef struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Pagination describes the neighbours of the current page.
type Pagination struct {
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
	Total int      `json:"total"`
	Next  *PageRef `json:"next,omitempty"`
	Prev  *PageRef `json:"prev,omitempty"`
}

type AdminUpdateInput struct {
	Name  string
	Email string
	Role  string
}

// List returns one page of users. Page is 1-based; limit is clamped.
func (s *UserService) List(ctx context.Context, page, limit int) ([]*entity.User, Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if maxPage := math.MaxInt / limit; page > maxPage {
		page = maxPage
	}
	users, total, err := s.Repo.List(ctx, repo.ListOptions{Limit: limit, Offset: (page - 1) * limit})
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list users: %w", err)
	}
	p := Pagination{Page: page, Limit: limit, Total: total}
	if page*limit < total {
		p.Next = &PageRef{Page: page + 1, Limit: limit}
	}
	if page > 1 {
		p.Prev = &PageRef{Page: page - 1, Limit: limit}
	}
	return users, p, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.Repo.FindByID(ctx, id, false)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, notFoundByID(id)
	}
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

// Create registers a user without issuing a session.
func (s *UserService) Create(ctx context.Context, in RegisterInput) (*entity.User, error) {
	return s.Creds.createUser(ctx, in)
}

// Update changes name, email and role. Passwords are never changed here.
func (s *UserService) Update(ctx context.Context, id string, in AdminUpdateInput) (*entity.User, error) {
	var upd repo.UserUpdate
	fields := map[string]string{}
	if name := strings.TrimSpace(in.Name); name != "" {
		upd.Name = &name
	}
	if email := entity.NormalizeEmail(in.Email); email != "" {
		if err := s.Creds.validate.Var(email, "email"); err != nil {
			fields["email"] = "must be a valid email"
		}
		upd.Email = &email
	}
	if in.Role != "" {
		role, ok := entity.ParseRole(in.Role)
		if !ok {
			fields["role"] = "must be one of: user, admin"
		}
		upd.Role = &role
	}
	if len(fields) > 0 {
		return nil, NewValidationError(fields)
	}

	u, err := s.Repo.UpdateByID(ctx, id, upd, repo.SaveOptions{Validate: true})
	if errors.Is(err, repo.ErrNotFound) {
		return nil, notFoundByID(id)
	}
	if err != nil {
		return nil, storeError("update user", err)
	}
	s.Creds.indexUser(ctx, u)
	return u, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	u, err := s.Repo.DeleteByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return notFoundByID(id)
	}
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if s.Index != nil {
		if err := s.Index.Delete(ctx, u.ID); err != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("remove user from index failed")
		}
	}
	return nil
}

// Search runs a free-text query against the user index. Without an index it returns no hits.
func (s *UserService) Search(ctx context.Context, q string, size int) ([]map[string]any, error) {
	q = strings.TrimSpace(q)
	if s.Index == nil || q == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > maxSearchSize {
		size = 10
	}
	hits, err := s.Index.Search(ctx, q, size)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return hits, nil
}

func notFoundByID(id string) *Error {
	return NotFound(fmt.Sprintf("No user with the id of %s", id))
}
