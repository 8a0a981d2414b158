package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/taxdesk-api/internal/models"
	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
	"github.com/noah-isme/taxdesk-api/pkg/response"
)

type authService interface {
	Submit(ctx context.Context, sid string, req models.AuthSubmitRequest) (*models.AuthResult, error)
	AdminLogin(ctx context.Context, sid string, req models.AdminLoginRequest) (*models.AuthResult, error)
	AdminLogout(ctx context.Context, sid string) error
	UserLogin(ctx context.Context, sid string, req models.UserLoginRequest) (*models.AuthResult, error)
	Signup(ctx context.Context, req models.UserSignupRequest) (*models.AuthResult, error)
	UserLogout(ctx context.Context, sid string) error
	Session(ctx context.Context, sid string) (*models.SessionView, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Submit godoc
// @Summary Submit the login form
// @Description Dispatches to admin login, user login or sign-up depending on mode
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.AuthSubmitRequest true "Form payload"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/submit [post]
func (h *AuthHandler) Submit(c *gin.Context) {
	var req models.AuthSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid auth payload"))
		return
	}

	res, err := h.service.Submit(c.Request.Context(), sessionFromContext(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, res)
}

// AdminLogin godoc
// @Summary Admin login
// @Description Verify admin credentials and start an admin session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.AdminLoginRequest true "Admin credentials"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/admin/login [post]
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req models.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid login payload"))
		return
	}

	res, err := h.service.AdminLogin(c.Request.Context(), sessionFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// AdminLogout godoc
// @Summary Admin logout
// @Description Clear the admin part of the session and stop its monitor
// @Tags Authentication
// @Produce json
// @Success 204
// @Failure 401 {object} response.Envelope
// @Router /auth/admin/logout [post]
func (h *AuthHandler) AdminLogout(c *gin.Context) {
	if err := h.service.AdminLogout(c.Request.Context(), sessionFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UserLogin godoc
// @Summary User login
// @Description Log a registered user in by email
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.UserLoginRequest true "User email"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) UserLogin(c *gin.Context) {
	var req models.UserLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid login payload"))
		return
	}

	res, err := h.service.UserLogin(c.Request.Context(), sessionFromContext(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// Signup godoc
// @Summary User sign-up
// @Description Register a user account. The user still has to log in afterwards.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.UserSignupRequest true "Sign-up payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.UserSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid sign-up payload"))
		return
	}

	res, err := h.service.Signup(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// UserLogout godoc
// @Summary User logout
// @Tags Authentication
// @Produce json
// @Success 204
// @Failure 401 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) UserLogout(c *gin.Context) {
	if err := h.service.UserLogout(c.Request.Context(), sessionFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Session godoc
// @Summary Current session
// @Description Returns the session flags. showUserMenu is reported once per login.
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	view, err := h.service.Session(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

func (h *AuthHandler) respond(c *gin.Context, res *models.AuthResult) {
	if res.Mode == models.AuthModeUserSignup {
		response.Created(c, res)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

func (h *AuthHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, appErrors.ErrNotRegistered) {
		response.Error(c, err, map[string]interface{}{"suggestedMode": string(models.AuthModeUserSignup)})
		return
	}
	response.Error(c, err)
}
