package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/go-auth-service/internal/application"
	"github.com/oksasatya/go-auth-service/internal/domain/entity"
	repo "github.com/oksasatya/go-auth-service/internal/domain/repository"
	"github.com/oksasatya/go-auth-service/pkg/helpers"
	"github.com/oksasatya/go-auth-service/pkg/response"
)

const (
	CtxPrincipalKey = "principal"
	CtxUserIDKey    = "userID"
)

// TokenVerifier resolves a session token to the principal id it was issued for.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Protect admits a request only when it carries a valid session token whose
// principal still exists. The Authorization header wins over the cookie.
// On success the principal is stored under CtxPrincipalKey.
func Protect(tokens TokenVerifier, users repo.UserRepository, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token == "" {
			deny(c, userapp.ErrUnauthenticated)
			return
		}
		id, err := tokens.Verify(token)
		if err != nil {
			deny(c, userapp.ErrUnauthenticated)
			return
		}
		u, err := users.FindByID(c.Request.Context(), id, false)
		if err != nil {
			if !errors.Is(err, repo.ErrNotFound) && logger != nil {
				logger.WithError(err).WithField("user_id", id).Error("load principal failed")
			}
			deny(c, userapp.ErrUnauthenticated)
			return
		}
		c.Set(CtxPrincipalKey, u)
		c.Set(CtxUserIDKey, u.ID)
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by Protect.
func PrincipalFrom(c *gin.Context) (*entity.User, bool) {
	v, ok := c.Get(CtxPrincipalKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*entity.User)
	return u, ok && u != nil
}

func tokenFromRequest(c *gin.Context) string {
	if h := strings.TrimSpace(c.GetHeader("Authorization")); h != "" {
		if scheme, rest, found := strings.Cut(h, " "); found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(rest)
		}
		return h
	}
	if v, err := c.Cookie(helpers.TokenCookieName); err == nil {
		return v
	}
	return ""
}

func deny(c *gin.Context, e *userapp.Error) {
	response.Abort(c, response.Error[any](c, e.Kind.Status(), e.Message, nil))
}
