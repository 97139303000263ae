package application

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/go-auth-service/internal/domain/entity"
	repo "github.com/oksasatya/go-auth-service/internal/domain/repository"
	"github.com/oksasatya/go-auth-service/internal/infrastructure/memory"
	"github.com/oksasatya/go-auth-service/pkg/helpers"
	"github.com/oksasatya/go-auth-service/pkg/mailer"
	mailtpl "github.com/oksasatya/go-auth-service/pkg/mailer/templates"
	"github.com/oksasatya/go-auth-service/pkg/validation"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
	// block waits for ctx to end before failing, simulating a stalled provider
	block bool
}

func (s *recordingSender) Send(ctx context.Context, msg mailer.Message) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	return nil
}

func (s *recordingSender) last(t *testing.T) mailer.Message {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent, "no message sent")
	return s.sent[len(s.sent)-1]
}

type fixture struct {
	svc    *CredentialService
	users  *memory.UserRepository
	sender *recordingSender
	clock  *clock
	jwt    *helpers.JWTManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := &clock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	f := &fixture{
		users:  memory.NewUserRepository(),
		sender: &recordingSender{},
		clock:  clk,
		jwt:    helpers.NewJWTManager("test-secret", time.Hour).WithClock(clk.Now),
	}
	f.svc = NewCredentialService(CredentialDeps{
		Repo:        f.users,
		Hasher:      helpers.NewPasswordHasher(bcrypt.MinCost),
		JWT:         f.jwt,
		Reset:       helpers.NewResetTokenGenerator(10 * time.Minute).WithClock(clk.Now),
		Mailer:      f.sender,
		Policy:      validation.PasswordPolicy{Min: 5, Max: 12},
		Brand:       mailtpl.Brand{AppName: "auth"},
		SendTimeout: 50 * time.Millisecond,
		Now:         clk.Now,
	})
	return f
}

func (f *fixture) register(t *testing.T, name, email, password string) *AuthResult {
	t.Helper()
	res, err := f.svc.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: password})
	require.NoError(t, err)
	return res
}

var resetLink = regexp.MustCompile(`/resetpassword/([0-9a-f]{40})`)

func (f *fixture) requestReset(t *testing.T, email string) string {
	t.Helper()
	require.NoError(t, f.svc.ForgotPassword(context.Background(), ForgotPasswordInput{
		Email:        email,
		ResetURLBase: "http://localhost/api/v1/auth/resetpassword",
	}))
	m := resetLink.FindStringSubmatch(f.sender.last(t).Text)
	require.Len(t, m, 2, "reset link missing from email body")
	return m[1]
}

func kindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return ""
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	res := f.register(t, "Ann", " Ann@Example.com ", "secret1")

	assert.Equal(t, "ann@example.com", res.User.Email)
	assert.Equal(t, entity.RoleUser, res.User.Role)
	assert.NotEqual(t, "secret1", res.User.PasswordHash)

	id, err := f.jwt.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, id)
	assert.Equal(t, f.clock.Now().Add(time.Hour), res.ExpiresAt)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Ann", "ann@example.com", "secret1")

	tests := []struct {
		name   string
		in     RegisterInput
		kind   Kind
		fields []string
	}{
		{"missing name", RegisterInput{Email: "x@example.com", Password: "secret1"}, KindValidation, []string{"name"}},
		{"bad email", RegisterInput{Name: "X", Email: "nope", Password: "secret1"}, KindValidation, []string{"email"}},
		{"short password", RegisterInput{Name: "X", Email: "x@example.com", Password: "abc"}, KindValidation, []string{"password"}},
		{"long password", RegisterInput{Name: "X", Email: "x@example.com", Password: "abcdefghijklm"}, KindValidation, []string{"password"}},
		{"unknown role", RegisterInput{Name: "X", Email: "x@example.com", Password: "secret1", Role: "root"}, KindValidation, []string{"role"}},
		{"several at once", RegisterInput{Password: "abc"}, KindValidation, []string{"name", "email", "password"}},
		{"duplicate email", RegisterInput{Name: "X", Email: "ANN@example.com", Password: "secret1"}, KindDuplicateEmail, []string{"email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tt.in)
			require.Error(t, err)
			e, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, e.Kind)
			for _, field := range tt.fields {
				assert.Contains(t, e.Fields, field)
			}
		})
	}
}

func TestRegister_AdminRole(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Register(context.Background(), RegisterInput{Name: "Root", Email: "root@example.com", Password: "secret1", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, res.User.Role)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Ann", "ann@example.com", "secret1")

	res, err := f.svc.Login(context.Background(), "ANN@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = f.svc.Login(context.Background(), "", "secret1")
	assert.ErrorIs(t, err, ErrMissingCredentials)
	_, err = f.svc.Login(context.Background(), "ann@example.com", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestLogin_UnknownEmailAndWrongPasswordAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Ann", "ann@example.com", "secret1")

	_, errUnknown := f.svc.Login(context.Background(), "bob@example.com", "secret1")
	_, errWrong := f.svc.Login(context.Background(), "ann@example.com", "wrong1")
	require.Error(t, errUnknown)
	require.Error(t, errWrong)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
	assert.Equal(t, kindOf(errUnknown), kindOf(errWrong))
	assert.Equal(t, KindInvalidCredentials, kindOf(errWrong))
}

func TestCurrentPrincipal(t *testing.T) {
	f := newFixture(t)
	ann := f.register(t, "Ann", "ann@example.com", "secret1")
	ctx := context.Background()

	u, err := f.svc.CurrentPrincipal(ctx, ann.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.Empty(t, u.PasswordHash)

	_, err = f.svc.CurrentPrincipal(ctx, "missing")
	assert.Equal(t, KindUnauthenticated, kindOf(err))
}

func TestUpdateDetails(t *testing.T) {
	f := newFixture(t)
	ann := f.register(t, "Ann", "ann@example.com", "secret1")
	f.register(t, "Bob", "bob@example.com", "secret1")
	ctx := context.Background()

	u, err := f.svc.UpdateDetails(ctx, ann.User.ID, UpdateDetailsInput{Name: "Anna", Email: "ANNA@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Anna", u.Name)
	assert.Equal(t, "anna@example.com", u.Email)

	_, err = f.svc.UpdateDetails(ctx, ann.User.ID, UpdateDetailsInput{Email: "bob@example.com"})
	assert.Equal(t, KindDuplicateEmail, kindOf(err))

	_, err = f.svc.UpdateDetails(ctx, ann.User.ID, UpdateDetailsInput{Email: "nope"})
	assert.Equal(t, KindValidation, kindOf(err))

	_, err = f.svc.UpdateDetails(ctx, ann.User.ID, UpdateDetailsInput{})
	assert.Equal(t, KindValidation, kindOf(err))

	_, err = f.svc.Login(ctx, "anna@example.com", "secret1")
	assert.NoError(t, err, "password must survive a details update")
}

func TestUpdatePassword(t *testing.T) {
	f := newFixture(t)
	ann := f.register(t, "Ann", "ann@example.com", "secret1")
	ctx := context.Background()

	_, err := f.svc.UpdatePassword(ctx, ann.User.ID, "wrong1", "newpass1")
	assert.ErrorIs(t, err, ErrIncorrectPassword)

	_, err = f.svc.UpdatePassword(ctx, ann.User.ID, "secret1", "abc")
	assert.Equal(t, KindValidation, kindOf(err))

	res, err := f.svc.UpdatePassword(ctx, ann.User.ID, "secret1", "newpass1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = f.svc.Login(ctx, "ann@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "ann@example.com", "newpass1")
	assert.NoError(t, err)

	_, err = f.svc.UpdatePassword(ctx, "missing", "secret1", "newpass1")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newFixture(t)
	ann := f.register(t, "Ann", "ann@example.com", "secret1")
	ctx := context.Background()

	token := f.requestReset(t, "ANN@example.com")
	msg := f.sender.last(t)
	assert.Equal(t, "ann@example.com", msg.To)
	assert.Equal(t, "Password reset token", msg.Subject)

	stored, err := f.users.FindByID(ctx, ann.User.ID, false)
	require.NoError(t, err)
	require.True(t, stored.HasResetToken())
	assert.NotEqual(t, token, *stored.ResetTokenHash, "only the digest may be stored")
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), *stored.ResetTokenExpiry)

	res, err := f.svc.ResetPassword(ctx, token, "newpass1")
	require.NoError(t, err)
	assert.Equal(t, ann.User.ID, res.User.ID)

	stored, err = f.users.FindByID(ctx, ann.User.ID, false)
	require.NoError(t, err)
	assert.False(t, stored.HasResetToken())

	_, err = f.svc.Login(ctx, "ann@example.com", "newpass1")
	assert.NoError(t, err)

	_, err = f.svc.ResetPassword(ctx, token, "another1")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken, "a reset token is single use")
}

func TestResetPassword_Expiry(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Ann", "ann@example.com", "secret1")
	token := f.requestReset(t, "ann@example.com")

	f.clock.Advance(10 * time.Minute)
	_, err := f.svc.ResetPassword(context.Background(), token, "newpass1")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestResetPassword_NewRequestReplacesOldToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Ann", "ann@example.com", "secret1")
	first := f.requestReset(t, "ann@example.com")
	second := f.requestReset(t, "ann@example.com")
	require.NotEqual(t, first, second)

	_, err := f.svc.ResetPassword(context.Background(), first, "newpass1")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	_, err = f.svc.ResetPassword(context.Background(), second, "newpass1")
	assert.NoError(t, err)
}

func TestResetPassword_InvalidInput(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Ann", "ann@example.com", "secret1")
	token := f.requestReset(t, "ann@example.com")

	_, err := f.svc.ResetPassword(context.Background(), "", "newpass1")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	_, err = f.svc.ResetPassword(context.Background(), "deadbeef", "newpass1")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	_, err = f.svc.ResetPassword(context.Background(), token, "abc")
	assert.Equal(t, KindValidation, kindOf(err))
	_, err = f.svc.ResetPassword(context.Background(), token, "newpass1")
	assert.NoError(t, err, "a rejected password must not burn the token")
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	f := newFixture(t)
	err := f.svc.ForgotPassword(context.Background(), ForgotPasswordInput{Email: "nobody@example.com"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = f.svc.ForgotPassword(context.Background(), ForgotPasswordInput{})
	assert.Equal(t, KindValidation, kindOf(err))
}

func TestForgotPassword_DeliveryFailureClearsToken(t *testing.T) {
	tests := []struct {
		name   string
		sender *recordingSender
	}{
		{"provider error", &recordingSender{err: errors.New("smtp down")}},
		{"provider timeout", &recordingSender{block: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ann := f.register(t, "Ann", "ann@example.com", "secret1")
			f.svc.mailer = tt.sender

			err := f.svc.ForgotPassword(context.Background(), ForgotPasswordInput{Email: "ann@example.com"})
			assert.ErrorIs(t, err, ErrEmailDeliveryFailed)

			stored, err := f.users.FindByID(context.Background(), ann.User.ID, true)
			require.NoError(t, err)
			assert.False(t, stored.HasResetToken())
			assert.NotEmpty(t, stored.PasswordHash)
		})
	}
}

func TestForgotPassword_RollbackSurvivesCancelledRequest(t *testing.T) {
	f := newFixture(t)
	ann := f.register(t, "Ann", "ann@example.com", "secret1")

	ctx, cancel := context.WithCancel(context.Background())
	f.svc.mailer = senderFunc(func(context.Context, mailer.Message) error {
		cancel()
		return errors.New("client went away")
	})
	err := f.svc.ForgotPassword(ctx, ForgotPasswordInput{Email: "ann@example.com"})
	assert.ErrorIs(t, err, ErrEmailDeliveryFailed)

	stored, err := f.users.FindByID(context.Background(), ann.User.ID, false)
	require.NoError(t, err)
	assert.False(t, stored.HasResetToken())
}

func TestForgotPassword_RollbackKeepsConcurrentProfileChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Register(ctx, RegisterInput{Name: "Ann", Email: "ann@example.com", Password: "secret1", Role: "admin"})
	require.NoError(t, err)
	id := res.User.ID

	f.svc.mailer = senderFunc(func(context.Context, mailer.Message) error {
		demoted, name := entity.RoleUser, "Anna"
		_, err := f.users.UpdateByID(ctx, id, repo.UserUpdate{Role: &demoted, Name: &name}, repo.SaveOptions{Validate: true})
		require.NoError(t, err)
		return errors.New("smtp down")
	})
	err = f.svc.ForgotPassword(ctx, ForgotPasswordInput{Email: "ann@example.com"})
	assert.ErrorIs(t, err, ErrEmailDeliveryFailed)

	stored, err := f.users.FindByID(ctx, id, false)
	require.NoError(t, err)
	assert.False(t, stored.HasResetToken())
	assert.Equal(t, entity.RoleUser, stored.Role, "a revoked role must stay revoked")
	assert.Equal(t, "Anna", stored.Name)
}

func TestForgotPassword_RollbackLeavesNewerToken(t *testing.T) {
	f := newFixture(t)
	ann := f.register(t, "Ann", "ann@example.com", "secret1")
	ctx := context.Background()

	var newer string
	f.svc.mailer = senderFunc(func(context.Context, mailer.Message) error {
		f.svc.mailer = f.sender
		newer = f.requestReset(t, "ann@example.com")
		return errors.New("smtp down")
	})
	err := f.svc.ForgotPassword(ctx, ForgotPasswordInput{Email: "ann@example.com"})
	assert.ErrorIs(t, err, ErrEmailDeliveryFailed)

	stored, err := f.users.FindByID(ctx, ann.User.ID, false)
	require.NoError(t, err)
	require.True(t, stored.HasResetToken())
	_, err = f.svc.ResetPassword(ctx, newer, "newpass1")
	assert.NoError(t, err)
}

// gatedStore holds every FindByResetToken caller until all of them have read the record.
type gatedStore struct {
	repo.UserRepository
	arrived sync.WaitGroup
}

func (g *gatedStore) FindByResetToken(ctx context.Context, hash string, now time.Time) (*entity.User, error) {
	u, err := g.UserRepository.FindByResetToken(ctx, hash, now)
	g.arrived.Done()
	g.arrived.Wait()
	return u, err
}

func TestResetPassword_ConcurrentUseSucceedsOnce(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Ann", "ann@example.com", "secret1")
	token := f.requestReset(t, "ann@example.com")

	const callers = 4
	gate := &gatedStore{UserRepository: f.users}
	gate.arrived.Add(callers)
	f.svc.repo = gate

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ResetPassword(context.Background(), token, "newpass1")
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	}
	assert.Equal(t, 1, ok, "a reset token is single use")
}

func TestUpdatePassword_RetiresResetToken(t *testing.T) {
	f := newFixture(t)
	ann := f.register(t, "Ann", "ann@example.com", "secret1")
	token := f.requestReset(t, "ann@example.com")

	_, err := f.svc.UpdatePassword(context.Background(), ann.User.ID, "secret1", "newpass1")
	require.NoError(t, err)
	_, err = f.svc.ResetPassword(context.Background(), token, "other12")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

type senderFunc func(context.Context, mailer.Message) error

func (fn senderFunc) Send(ctx context.Context, m mailer.Message) error { return fn(ctx, m) }

type failingStore struct {
	repo.UserRepository
}

func (failingStore) FindByEmail(context.Context, string, bool) (*entity.User, error) {
	return nil, errors.New("connection refused")
}

func TestLogin_StoreFailureIsNotClassified(t *testing.T) {
	f := newFixture(t)
	f.svc.repo = failingStore{f.users}
	_, err := f.svc.Login(context.Background(), "ann@example.com", "secret1")
	require.Error(t, err)
	_, classified := AsError(err)
	assert.False(t, classified)
}

func TestErrorKindStatus(t *testing.T) {
	assert.Equal(t, 400, KindValidation.Status())
	assert.Equal(t, 400, KindInvalidCredentials.Status())
	assert.Equal(t, 401, KindIncorrectPassword.Status())
	assert.Equal(t, 401, KindUnauthenticated.Status())
	assert.Equal(t, 403, KindForbidden.Status())
	assert.Equal(t, 404, KindUserNotFound.Status())
	assert.Equal(t, 500, KindEmailDeliveryFailed.Status())
	assert.True(t, errors.Is(&Error{Kind: KindForbidden, Message: "x"}, ErrForbidden))
}
