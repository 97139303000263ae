package container

import (
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-auth-service/config"
	userapp "github.com/oksasatya/go-auth-service/internal/application"
	"github.com/oksasatya/go-auth-service/internal/domain/repository"
	"github.com/oksasatya/go-auth-service/pkg/helpers"
	"github.com/oksasatya/go-auth-service/pkg/mailer"
	mailtpl "github.com/oksasatya/go-auth-service/pkg/mailer/templates"
	"github.com/oksasatya/go-auth-service/pkg/validation"
)

// Container holds the components built once at startup and handed to the router.
// Redis and Index are optional; nil disables rate limiting and search.
type Container struct {
	Config *config.Config
	Logger *logrus.Logger
	Redis  *redis.Client

	Users   repository.UserRepository
	Index   userapp.UserIndex
	Mailer  mailer.Sender
	JWT     *helpers.JWTManager
	Cookies *helpers.Manager

	Credentials *userapp.CredentialService
	UserAdmin   *userapp.UserService
}

// Deps are the infrastructure pieces main resolves before wiring.
type Deps struct {
	Users  repository.UserRepository
	Mailer mailer.Sender
	Index  userapp.UserIndex
	Redis  *redis.Client
}

func New(cfg *config.Config, logger *logrus.Logger, d Deps) *Container {
	jwt := helpers.NewJWTManager(cfg.JWTSecret, cfg.JWTExpire)
	creds := userapp.NewCredentialService(userapp.CredentialDeps{
		Repo:        d.Users,
		Hasher:      helpers.NewPasswordHasher(cfg.BcryptCost),
		JWT:         jwt,
		Reset:       helpers.NewResetTokenGenerator(cfg.ResetTokenTTL),
		Mailer:      d.Mailer,
		Index:       d.Index,
		Logger:      logger,
		Policy:      validation.PasswordPolicy{Min: cfg.PasswordMinLen, Max: cfg.PasswordMaxLen},
		Brand:       mailtpl.Brand{AppName: cfg.AppName, CompanyName: cfg.CompanyName, SupportURL: cfg.SupportURL},
		SendTimeout: cfg.MailSendTimeout,
	})
	return &Container{
		Config:      cfg,
		Logger:      logger,
		Redis:       d.Redis,
		Users:       d.Users,
		Index:       d.Index,
		Mailer:      d.Mailer,
		JWT:         jwt,
		Cookies:     helpers.NewCookie(cfg.CookieDomain, cfg.IsProduction(), cfg.CookieTTL()),
		Credentials: creds,
		UserAdmin:   userapp.NewUserService(d.Users, creds, d.Index, logger),
	}
}
