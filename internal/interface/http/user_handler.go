package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/go-auth-service/internal/application"
	"github.com/oksasatya/go-auth-service/pkg/response"
)

// UserHandler serves the admin user management routes.
type UserHandler struct {
	Svc    *userapp.UserService
	Logger *logrus.Logger
}

func NewUserHandler(svc *userapp.UserService, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger}
}

type adminUpdateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// List GET /api/v1/users?page=&limit=
func (h *UserHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	users, p, err := h.Svc.List(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.JSON(c, response.List(c, users, gin.H{"pagination": p}))
}

// Get GET /api/v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	u, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.JSON(c, response.Success(c, http.StatusOK, u, "", nil))
}

// Create POST /api/v1/users
func (h *UserHandler) Create(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, h.Logger, &req) {
		return
	}
	u, err := h.Svc.Create(c.Request.Context(), userapp.RegisterInput{
		Name: req.Name, Email: req.Email, Password: req.Password, Role: req.Role,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.JSON(c, response.Success(c, http.StatusCreated, u, "", nil))
}

// Update PUT /api/v1/users/:id; a password in the body is ignored.
func (h *UserHandler) Update(c *gin.Context) {
	var req adminUpdateRequest
	if !bindJSON(c, h.Logger, &req) {
		return
	}
	u, err := h.Svc.Update(c.Request.Context(), c.Param("id"), userapp.AdminUpdateInput{
		Name: req.Name, Email: req.Email, Role: req.Role,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.JSON(c, response.Success(c, http.StatusOK, u, "", nil))
}

// Delete DELETE /api/v1/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.JSON(c, response.Success[any](c, http.StatusOK, gin.H{}, "", nil))
}

// Search GET /api/v1/users/search?q=&size=
func (h *UserHandler) Search(c *gin.Context) {
	size, _ := strconv.Atoi(c.Query("size"))
	hits, err := h.Svc.Search(c.Request.Context(), c.Query("q"), size)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.JSON(c, response.List(c, hits, nil))
}
