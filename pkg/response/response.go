package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type APIResponse[T any] struct {
	Status    int         `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Token     string      `json:"token,omitempty"`
	Count     *int        `json:"count,omitempty"`
	Data      T           `json:"data,omitempty"`
	Meta      interface{} `json:"meta,omitempty"`
	Error     interface{} `json:"error,omitempty"`
}

func Success[T any](ctx *gin.Context, status int, data T, message string, meta interface{}) APIResponse[T] {
	if status == 0 {
		status = http.StatusOK
	}
	return APIResponse[T]{
		Status:    status,
		Timestamp: time.Now(),
		RequestID: ctx.GetString("request_id"),
		Success:   true,
		Message:   message,
		Data:      data,
		Meta:      meta,
	}
}

// Token is the success envelope of every flow that issues a session token.
func Token(ctx *gin.Context, token string) APIResponse[any] {
	resp := Success[any](ctx, http.StatusOK, nil, "", nil)
	resp.Token = token
	return resp
}

// List is the success envelope for collections.
func List[T any](ctx *gin.Context, items []T, meta interface{}) APIResponse[[]T] {
	n := len(items)
	resp := Success(ctx, http.StatusOK, items, "", meta)
	resp.Count = &n
	return resp
}

func Error[T any](ctx *gin.Context, status int, message string, err interface{}) APIResponse[T] {
	if status == 0 {
		status = http.StatusBadRequest
	}
	if err == nil {
		err = message
	}
	return APIResponse[T]{
		Status:    status,
		Timestamp: time.Now(),
		RequestID: ctx.GetString("request_id"),
		Success:   false,
		Message:   message,
		Error:     err,
	}
}

// JSON writes resp with its own status code.
func JSON[T any](c *gin.Context, resp APIResponse[T]) {
	c.JSON(resp.Status, resp)
}

// Abort writes resp and stops the handler chain.
func Abort[T any](c *gin.Context, resp APIResponse[T]) {
	c.AbortWithStatusJSON(resp.Status, resp)
}
