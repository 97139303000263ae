package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/go-auth-service/internal/application"
	"github.com/oksasatya/go-auth-service/internal/interface/middleware"
	"github.com/oksasatya/go-auth-service/pkg/helpers"
	"github.com/oksasatya/go-auth-service/pkg/response"
)

const resetPath = "/api/v1/auth/resetpassword"

type AuthHandler struct {
	Svc     *userapp.CredentialService
	Cookies *helpers.Manager
	Logger  *logrus.Logger
	// ResetURLBase overrides the reset link base derived from the request.
	ResetURLBase string
}

func NewAuthHandler(svc *userapp.CredentialService, cookies *helpers.Manager, logger *logrus.Logger, resetURLBase string) *AuthHandler {
	return &AuthHandler{Svc: svc, Cookies: cookies, Logger: logger, ResetURLBase: resetURLBase}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateDetailsRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// Register POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, h.Logger, &req) {
		return
	}
	res, err := h.Svc.Register(c.Request.Context(), userapp.RegisterInput{
		Name: req.Name, Email: req.Email, Password: req.Password, Role: req.Role,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	countEvent(statRegistered)
	h.sendToken(c, res)
}

// Login POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, h.Logger, &req) {
		return
	}
	res, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		countEvent(statLoginFailed)
		respondError(c, h.Logger, err)
		return
	}
	countEvent(statLoginOK)
	h.sendToken(c, res)
}

// Logout GET /api/v1/auth/logout clears the session cookie. It never fails.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.Cookies.Clear(c)
	response.JSON(c, response.Success[any](c, http.StatusOK, gin.H{}, "", nil))
}

// Me GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		respondError(c, h.Logger, userapp.ErrUnauthenticated)
		return
	}
	u, err := h.Svc.CurrentPrincipal(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.JSON(c, response.Success(c, http.StatusOK, u, "", nil))
}

// UpdateDetails PUT /api/v1/auth/updatedetails
func (h *AuthHandler) UpdateDetails(c *gin.Context) {
	var req updateDetailsRequest
	if !bindJSON(c, h.Logger, &req) {
		return
	}
	u, err := h.Svc.UpdateDetails(c.Request.Context(), c.GetString(middleware.CtxUserIDKey),
		userapp.UpdateDetailsInput{Name: req.Name, Email: req.Email})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.JSON(c, response.Success(c, http.StatusOK, u, "", nil))
}

// UpdatePassword PUT /api/v1/auth/updatepassword
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	var req updatePasswordRequest
	if !bindJSON(c, h.Logger, &req) {
		return
	}
	res, err := h.Svc.UpdatePassword(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), req.CurrentPassword, req.NewPassword)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	h.sendToken(c, res)
}

// ForgotPassword POST /api/v1/auth/forgotpassword
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindJSON(c, h.Logger, &req) {
		return
	}
	err := h.Svc.ForgotPassword(c.Request.Context(), userapp.ForgotPasswordInput{
		Email:        req.Email,
		ResetURLBase: h.resetURLBase(c),
		IP:           clientIP(c),
		UserAgent:    c.GetHeader("User-Agent"),
	})
	if err != nil {
		if e, ok := userapp.AsError(err); ok && e.Kind == userapp.KindEmailDeliveryFailed {
			countEvent(statResetMailFail)
		}
		respondError(c, h.Logger, err)
		return
	}
	countEvent(statResetRequested)
	response.JSON(c, response.Success[any](c, http.StatusOK, "Email sent", "", nil))
}

// ResetPassword PUT /api/v1/auth/resetpassword/:resettoken
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, h.Logger, &req) {
		return
	}
	res, err := h.Svc.ResetPassword(c.Request.Context(), c.Param("resettoken"), req.Password)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	countEvent(statResetDone)
	h.sendToken(c, res)
}

func (h *AuthHandler) sendToken(c *gin.Context, res *userapp.AuthResult) {
	h.Cookies.SetToken(c, res.Token)
	response.JSON(c, response.Token(c, res.Token))
}

func (h *AuthHandler) resetURLBase(c *gin.Context) string {
	if h.ResetURLBase != "" {
		return h.ResetURLBase
	}
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + resetPath
}
