package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/go-auth-service/internal/interface/http"
	"github.com/oksasatya/go-auth-service/internal/interface/middleware"
)

// AuthModule mounts /auth. Credential-guessing endpoints are rate limited per IP and route.
type AuthModule struct {
	Handler *handlers.AuthHandler
	Protect gin.HandlerFunc
	Limits  Limits
}

func NewAuthModule(h *handlers.AuthHandler, protect gin.HandlerFunc, limits Limits) *AuthModule {
	return &AuthModule{Handler: h, Protect: protect, Limits: limits}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	loginLimiter := m.Limits.perMinute(m.Limits.Login, middleware.KeyByIPAndPath())
	forgotLimiter := m.Limits.perMinute(m.Limits.Forgot, middleware.KeyByIPAndPath())

	auth := rg.Group("/auth")
	auth.POST("/register", loginLimiter, m.Handler.Register)
	auth.POST("/login", loginLimiter, m.Handler.Login)
	auth.GET("/logout", m.Handler.Logout)
	auth.POST("/forgotpassword", forgotLimiter, m.Handler.ForgotPassword)
	auth.PUT("/resetpassword/:resettoken", forgotLimiter, m.Handler.ResetPassword)

	protected := auth.Group("/", m.Protect)
	{
		protected.GET("/me", m.Handler.Me)
		protected.PUT("/updatedetails", m.Handler.UpdateDetails)
		protected.PUT("/updatepassword", loginLimiter, m.Handler.UpdatePassword)
	}
}
