package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-auth-service/internal/interface/middleware"
)

// Limits carries the per-minute budgets modules apply. A nil Redis disables limiting.
type Limits struct {
	Redis  *redis.Client
	Logger *logrus.Logger
	Allow  middleware.AllowFunc
	Login  int
	Forgot int
}

func (l Limits) perMinute(max int, key middleware.KeyFunc) gin.HandlerFunc {
	return middleware.RateLimit(l.Redis, max, time.Minute, key, l.Allow, l.Logger)
}
