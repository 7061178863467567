package handlers

import (
	"net/http"

	"github.com/crewhire/onboarding-backend/internal/middleware"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// StaffHandler handles staff account administration
type StaffHandler struct {
	staff  *services.StaffService
	audit  *services.AuditService
	logger *logrus.Logger
}

// NewStaffHandler creates a new staff handler
func NewStaffHandler(staff *services.StaffService, audit *services.AuditService, logger *logrus.Logger) *StaffHandler {
	return &StaffHandler{staff: staff, audit: audit, logger: logger}
}

// CreateUser handles POST /api/v1/admin/users
func (h *StaffHandler) CreateUser(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	createdBy := userCtx.UserID
	user, err := h.staff.CreateUser(c.Request.Context(), req, &createdBy)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.safeLogStaffChange(c.Request.Context(), userCtx.UserID, user.ID, "created", requestContext(c))
	h.logger.WithFields(logrus.Fields{
		"user_id":    user.ID,
		"role":       user.Role,
		"created_by": userCtx.UserID,
	}).Info("Staff user created")
	c.JSON(http.StatusCreated, user)
}

// ListUsers handles GET /api/v1/admin/users?role=
func (h *StaffHandler) ListUsers(c *gin.Context) {
	users, err := h.staff.ListUsers(c.Request.Context(), models.StaffRole(c.Query("role")))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetUser handles GET /api/v1/admin/users/:id
func (h *StaffHandler) GetUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	user, err := h.staff.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateUser handles PUT /api/v1/admin/users/:id
func (h *StaffHandler) UpdateUser(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.staff.UpdateUser(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.safeLogStaffChange(c.Request.Context(), userCtx.UserID, id, "updated", requestContext(c))
	c.JSON(http.StatusOK, user)
}

// DeleteUser handles DELETE /api/v1/admin/users/:id
func (h *StaffHandler) DeleteUser(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}
	if id == userCtx.UserID {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "You cannot delete your own account",
			Code:    "SELF_DELETE",
		})
		return
	}

	if err := h.staff.DeleteUser(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.safeLogStaffChange(c.Request.Context(), userCtx.UserID, id, "deleted", requestContext(c))
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}
