package router

import (
	"github.com/oksasatya/go-auth-service/internal/container"
	handlers "github.com/oksasatya/go-auth-service/internal/interface/http"
	"github.com/oksasatya/go-auth-service/internal/interface/middleware"
	"github.com/oksasatya/go-auth-service/internal/router/modules"
)

// InitModules builds handlers from the container and adds every module to the registry.
func InitModules(r *Registry, c *container.Container) {
	protect := middleware.Protect(c.JWT, c.Users, c.Logger)

	var allow middleware.AllowFunc
	if !c.Config.IsProduction() {
		allow = middleware.AllowPrivateIP()
	}
	limits := modules.Limits{
		Redis:  c.Redis,
		Logger: c.Logger,
		Allow:  allow,
		Login:  c.Config.LoginRateLimit,
		Forgot: c.Config.ForgotRateLimit,
	}

	auth := handlers.NewAuthHandler(c.Credentials, c.Cookies, c.Logger, c.Config.ResetPasswordURL)
	r.Add(modules.NewAuthModule(auth, protect, limits))

	users := handlers.NewUserHandler(c.UserAdmin, c.Logger)
	r.Add(modules.NewUserModule(users, protect, limits))

	if c.Config.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(limits))
	}
}
