package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-auth-service/internal/domain/entity"
	repo "github.com/oksasatya/go-auth-service/internal/domain/repository"
	"github.com/oksasatya/go-auth-service/pkg/helpers"
	"github.com/oksasatya/go-auth-service/pkg/mailer"
	mailtpl "github.com/oksasatya/go-auth-service/pkg/mailer/templates"
	"github.com/oksasatya/go-auth-service/pkg/validation"
)

// UserIndex keeps a searchable copy of user profiles. Writes are best-effort.
type UserIndex interface {
	Index(ctx context.Context, u *entity.User) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q string, size int) ([]map[string]any, error)
}

// CredentialDeps wires a CredentialService. Index and Logger are optional.
type CredentialDeps struct {
	Repo        repo.UserRepository
	Hasher      *helpers.PasswordHasher
	JWT         *helpers.JWTManager
	Reset       *helpers.ResetTokenGenerator
	Mailer      mailer.Sender
	Index       UserIndex
	Logger      *logrus.Logger
	Policy      validation.PasswordPolicy
	Brand       mailtpl.Brand
	SendTimeout time.Duration
	Now         func() time.Time
}

// CredentialService runs the registration, login, password change and password reset flows.
type CredentialService struct {
	repo        repo.UserRepository
	hasher      *helpers.PasswordHasher
	jwt         *helpers.JWTManager
	reset       *helpers.ResetTokenGenerator
	mailer      mailer.Sender
	index       UserIndex
	logger      *logrus.Logger
	policy      validation.PasswordPolicy
	brand       mailtpl.Brand
	sendTimeout time.Duration
	now         func() time.Time
	validate    *validator.Validate

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialService(d CredentialDeps) *CredentialService {
	if d.Logger == nil {
		d.Logger = helpers.NewNopLogger()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.SendTimeout <= 0 {
		d.SendTimeout = 10 * time.Second
	}
	return &CredentialService{
		repo:        d.Repo,
		hasher:      d.Hasher,
		jwt:         d.JWT,
		reset:       d.Reset,
		mailer:      d.Mailer,
		index:       d.Index,
		logger:      d.Logger,
		policy:      d.Policy,
		brand:       d.Brand,
		sendTimeout: d.SendTimeout,
		now:         d.Now,
		validate:    validation.New(),
	}
}

// AuthResult is the outcome of every flow that ends with a usable session.
type AuthResult struct {
	User      *entity.User
	Token     string
	ExpiresAt time.Time
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
	Role     string `json:"role" validate:"omitempty,role"`
}

type UpdateDetailsInput struct {
	Name  string
	Email string
}

type ForgotPasswordInput struct {
	Email string
	// ResetURLBase is the URL the plaintext token is appended to.
	ResetURLBase string
	IP           string
	UserAgent    string
}

// Register creates a principal and issues its first session token.
func (s *CredentialService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	u, err := s.createUser(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// Login checks email and password. Unknown email and wrong password fail identically.
func (s *CredentialService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = entity.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	u, err := s.repo.FindByEmail(ctx, email, true)
	if errors.Is(err, repo.ErrNotFound) {
		// keep the response time close to a real comparison
		s.hasher.Verify(password, s.timingHash())
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(u)
}

// CurrentPrincipal returns the stored principal for an authenticated id.
func (s *CredentialService) CurrentPrincipal(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.repo.FindByID(ctx, id, false)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("load current principal: %w", err)
	}
	return u, nil
}

// UpdateDetails changes name and/or email of the principal id.
func (s *CredentialService) UpdateDetails(ctx context.Context, id string, in UpdateDetailsInput) (*entity.User, error) {
	var upd repo.UserUpdate
	if name := strings.TrimSpace(in.Name); name != "" {
		upd.Name = &name
	}
	if email := entity.NormalizeEmail(in.Email); email != "" {
		if err := s.validate.Var(email, "email"); err != nil {
			return nil, NewValidationError(map[string]string{"email": "must be a valid email"})
		}
		upd.Email = &email
	}
	if upd.Name == nil && upd.Email == nil {
		return nil, NewValidationError(map[string]string{"payload": "name or email is required"})
	}
	u, err := s.repo.UpdateByID(ctx, id, upd, repo.SaveOptions{Validate: true})
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, storeError("update user details", err)
	}
	s.indexUser(ctx, u)
	return u, nil
}

// UpdatePassword replaces the password after checking the current one, then re-issues a token.
func (s *CredentialService) UpdatePassword(ctx context.Context, id, current, next string) (*AuthResult, error) {
	u, err := s.repo.FindByID(ctx, id, true)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	if current == "" || !s.hasher.Verify(current, u.PasswordHash) {
		return nil, ErrIncorrectPassword
	}
	if msg := s.policy.Check(next); msg != "" {
		return nil, NewValidationError(map[string]string{"newPassword": msg})
	}
	if err := s.setPassword(ctx, u, next); err != nil {
		return nil, err
	}
	return s.issue(u)
}

// ForgotPassword stores a reset token on the principal and mails its plaintext form.
// When the mail cannot be sent the token is cleared again before the error is returned.
func (s *CredentialService) ForgotPassword(ctx context.Context, in ForgotPasswordInput) error {
	email := entity.NormalizeEmail(in.Email)
	if email == "" {
		return NewValidationError(map[string]string{"email": "is required"})
	}
	u, err := s.repo.FindByEmail(ctx, email, false)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("find user by email: %w", err)
	}

	plain, hashed, expiry, err := s.reset.Generate()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	u.SetResetToken(hashed, expiry)
	if err := s.repo.Save(ctx, u, repo.SaveOptions{Validate: false}); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	resetURL := strings.TrimRight(in.ResetURLBase, "/") + "/" + plain
	msg, err := s.composeResetMail(u, resetURL, expiry, in)
	if err == nil {
		sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
		err = s.mailer.Send(sendCtx, msg)
		cancel()
	}
	if err != nil {
		s.logger.WithError(err).WithField("user_id", u.ID).Error("reset email failed, clearing reset token")
		// the rollback must run even if the request was cancelled; a token
		// replaced by a newer request is left alone
		rbErr := s.repo.ClearResetToken(context.WithoutCancel(ctx), u.ID, hashed)
		if rbErr != nil && !errors.Is(rbErr, repo.ErrNotFound) {
			s.logger.WithError(rbErr).WithField("user_id", u.ID).Error("clear reset token failed")
		}
		return ErrEmailDeliveryFailed
	}
	return nil
}

// ResetPassword sets a new password for the holder of a valid, unexpired reset token.
func (s *CredentialService) ResetPassword(ctx context.Context, token, password string) (*AuthResult, error) {
	if token == "" {
		return nil, ErrInvalidOrExpiredToken
	}
	u, err := s.repo.FindByResetToken(ctx, helpers.HashResetToken(token), s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return nil, fmt.Errorf("find user by reset token: %w", err)
	}
	if !u.HasResetToken() || !s.reset.Match(token, *u.ResetTokenHash) || !s.now().Before(*u.ResetTokenExpiry) {
		return nil, ErrInvalidOrExpiredToken
	}
	if msg := s.policy.Check(password); msg != "" {
		return nil, NewValidationError(map[string]string{"password": msg})
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	// the token is spent by whichever request wins this write
	u, err = s.repo.ConsumeResetToken(ctx, *u.ResetTokenHash, s.now(), hash)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return nil, storeError("consume reset token", err)
	}
	return s.issue(u)
}

func (s *CredentialService) createUser(ctx context.Context, in RegisterInput) (*entity.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = entity.NormalizeEmail(in.Email)
	fields := map[string]string{}
	for k, v := range validation.ToDetails(s.validate.Struct(in)) {
		fields[k] = v
	}
	if msg := s.policy.Check(in.Password); msg != "" {
		fields["password"] = msg
	}
	if len(fields) > 0 {
		return nil, NewValidationError(fields)
	}
	role, _ := entity.ParseRole(in.Role)

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &entity.User{Name: in.Name, Email: in.Email, PasswordHash: hash, Role: role}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, storeError("create user", err)
	}
	s.indexUser(ctx, u)
	return u, nil
}

func (s *CredentialService) setPassword(ctx context.Context, u *entity.User, plain string) error {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash
	// a password change also retires any outstanding reset token
	u.ClearResetToken()
	if err := s.repo.Save(ctx, u, repo.SaveOptions{Validate: true}); err != nil {
		return storeError("save password", err)
	}
	return nil
}

func (s *CredentialService) issue(u *entity.User) (*AuthResult, error) {
	tok, exp, err := s.jwt.Issue(u.ID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", u.ID).Error("sign token failed")
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &AuthResult{User: u, Token: tok, ExpiresAt: exp}, nil
}

func (s *CredentialService) composeResetMail(u *entity.User, resetURL string, expiry time.Time, in ForgotPasswordInput) (mailer.Message, error) {
	data := mailtpl.NewResetPasswordData(s.brand, u.Name, u.Email, resetURL,
		mailtpl.WithTime(s.now()),
		mailtpl.WithExpiresAt(expiry),
		mailtpl.WithIP(in.IP),
		mailtpl.WithUserAgent(in.UserAgent),
	)
	subject, text, html, err := mailtpl.Render(mailtpl.ResetPassword, data)
	if err != nil {
		return mailer.Message{}, fmt.Errorf("render reset email: %w", err)
	}
	return mailer.Message{To: u.Email, Subject: subject, Text: text, HTML: html}, nil
}

func (s *CredentialService) indexUser(ctx context.Context, u *entity.User) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, u); err != nil {
		s.logger.WithError(err).WithField("user_id", u.ID).Warn("index user failed")
	}
}

func (s *CredentialService) timingHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("timing-equalizer")
	})
	return s.dummyHash
}

// storeError maps store constraint violations onto the error taxonomy.
func storeError(op string, err error) error {
	var verr *repo.ValidationError
	switch {
	case errors.Is(err, repo.ErrDuplicateEmail):
		return ErrDuplicateEmail
	case errors.As(err, &verr):
		return NewValidationError(map[string]string{verr.Field: verr.Message})
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
