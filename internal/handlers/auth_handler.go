package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/crewhire/onboarding-backend/internal/middleware"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AuthHandler handles staff authentication HTTP requests
type AuthHandler struct {
	auth   *services.AuthService
	audit  *services.AuditService
	logger *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *services.AuthService, audit *services.AuditService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		audit:  audit,
		logger: logger,
	}
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	rc := requestContext(c)
	response, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, rc.IPAddress, rc.UserAgent)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"email": req.Email,
			"error": err.Error(),
		}).Warn("Staff login failed")
		if errors.Is(err, services.ErrInvalidCredentials) || errors.Is(err, services.ErrAccountInactive) {
			h.safeLogLogin(c.Request.Context(), nil, req.Email, rc, false, err.Error())
		}
		respondError(c, h.logger, err)
		return
	}

	h.safeLogLogin(c.Request.Context(), &response.User.ID, response.User.Email, rc, true, "")
	h.logger.WithFields(logrus.Fields{
		"user_id": response.User.ID,
		"role":    response.User.Role,
	}).Info("Staff login successful")

	c.JSON(http.StatusOK, response)
}

// RefreshToken handles POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	rc := requestContext(c)
	response, err := h.auth.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.logger.WithError(err).Warn("Token refresh failed")
		h.safeLogTokenRefresh(c.Request.Context(), nil, rc, false)
		respondError(c, h.logger, err)
		return
	}

	h.safeLogTokenRefresh(c.Request.Context(), &response.User.ID, rc, true)
	c.JSON(http.StatusOK, response)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return
	}

	if req.RefreshToken != "" {
		if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
			respondError(c, h.logger, err)
			return
		}
	}

	h.safeLogLogout(c.Request.Context(), userCtx.UserID, requestContext(c))
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	user, err := h.auth.Me(c.Request.Context(), userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// ChangePassword handles POST /api/v1/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), userCtx.UserID, req.OldPassword, req.NewPassword); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithField("user_id", userCtx.UserID).Info("Staff password changed")
	c.JSON(http.StatusOK, gin.H{"message": "Password changed. Please sign in again."})
}
