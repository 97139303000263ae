package modules

import (
	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-auth-service/internal/domain/entity"
	handlers "github.com/oksasatya/go-auth-service/internal/interface/http"
	"github.com/oksasatya/go-auth-service/internal/interface/middleware"
)

const adminRequestsPerMinute = 120

// UserModule mounts the admin-only /users routes.
type UserModule struct {
	Handler *handlers.UserHandler
	Protect gin.HandlerFunc
	Limits  Limits
}

func NewUserModule(h *handlers.UserHandler, protect gin.HandlerFunc, limits Limits) *UserModule {
	return &UserModule{Handler: h, Protect: protect, Limits: limits}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	users := rg.Group("/users",
		m.Protect,
		middleware.Authorize(entity.RoleAdmin),
		m.Limits.perMinute(adminRequestsPerMinute, middleware.KeyByUserID()),
	)
	{
		users.GET("", m.Handler.List)
		users.POST("", m.Handler.Create)
		users.GET("/search", m.Handler.Search)
		users.GET("/:id", m.Handler.Get)
		users.PUT("/:id", m.Handler.Update)
		users.DELETE("/:id", m.Handler.Delete)
	}
}
