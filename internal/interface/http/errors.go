package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/go-auth-service/internal/application"
	"github.com/oksasatya/go-auth-service/pkg/response"
	"github.com/oksasatya/go-auth-service/pkg/validation"
)

// respondError is the single place where failures become HTTP responses.
// Unclassified errors are logged and reported as a generic server error.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	if e, ok := userapp.AsError(err); ok {
		var details any
		if len(e.Fields) > 0 {
			details = e.Fields
		}
		response.JSON(c, response.Error[any](c, e.Kind.Status(), e.Message, details))
		return
	}
	if logger != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"path":       c.FullPath(),
		}).Error("request failed")
	}
	response.JSON(c, response.Error[any](c, http.StatusInternalServerError, "Server Error", nil))
}

// bindJSON decodes the body into dst and reports malformed payloads as validation errors.
// An empty body leaves dst zeroed so the flow reports what is missing.
func bindJSON(c *gin.Context, logger *logrus.Logger, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, logger, userapp.NewValidationError(validation.ToDetails(err)))
		return false
	}
	return true
}

func clientIP(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	return c.ClientIP()
}
