package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	userapp "github.com/oksasatya/go-auth-service/internal/application"
	"github.com/oksasatya/go-auth-service/internal/domain/entity"
)

// Authorize admits principals whose role is in roles. It must run after Protect;
// a request without a principal is treated as unauthenticated.
func Authorize(roles ...entity.Role) gin.HandlerFunc {
	allowed := entity.NewRoleSet(roles...)
	return func(c *gin.Context) {
		u, ok := PrincipalFrom(c)
		if !ok {
			deny(c, userapp.ErrUnauthenticated)
			return
		}
		if !allowed.Allows(u.Role) {
			deny(c, &userapp.Error{
				Kind:    userapp.KindForbidden,
				Message: fmt.Sprintf("User role %s is not authorized to access this route", u.Role),
			})
			return
		}
		c.Next()
	}
}
