package modules

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oksasatya/go-auth-service/internal/interface/middleware"
)

const debugRequestsPerMinute = 120

type DebugModule struct {
	Limits Limits
}

func NewDebugModule(limits Limits) *DebugModule { return &DebugModule{Limits: limits} }

// Register exposes the Prometheus registry, rate-limited per IP.
func (m *DebugModule) Register(rg *gin.RouterGroup) {
	rg.GET("/debug/metrics", m.Limits.perMinute(debugRequestsPerMinute, middleware.KeyByIP()), gin.WrapH(promhttp.Handler()))
}
