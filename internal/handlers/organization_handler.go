package handlers

import (
	"net/http"

	"github.com/crewhire/onboarding-backend/internal/middleware"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// OrganizationHandler handles outlet and job role administration
type OrganizationHandler struct {
	org    *services.OrganizationService
	logger *logrus.Logger
}

// NewOrganizationHandler creates a new organization handler
func NewOrganizationHandler(org *services.OrganizationService, logger *logrus.Logger) *OrganizationHandler {
	return &OrganizationHandler{org: org, logger: logger}
}

// CreateOutlet handles POST /api/v1/outlets
func (h *OrganizationHandler) CreateOutlet(c *gin.Context) {
	var req models.CreateOutletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	outlet, err := h.org.CreateOutlet(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, outlet)
}

// ListOutlets handles GET /api/v1/outlets
func (h *OrganizationHandler) ListOutlets(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	outlets, err := h.org.ListOutlets(c.Request.Context(), userCtx.Actor())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outlets": outlets})
}

// GetOutlet handles GET /api/v1/outlets/:code
func (h *OrganizationHandler) GetOutlet(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	outlet, err := h.org.GetOutlet(c.Request.Context(), userCtx.Actor(), c.Param("code"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, outlet)
}

// UpdateOutlet handles PUT /api/v1/outlets/:code
func (h *OrganizationHandler) UpdateOutlet(c *gin.Context) {
	var req models.UpdateOutletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	outlet, err := h.org.UpdateOutlet(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, outlet)
}

// DeleteOutlet handles DELETE /api/v1/outlets/:code
func (h *OrganizationHandler) DeleteOutlet(c *gin.Context) {
	if err := h.org.DeleteOutlet(c.Request.Context(), c.Param("code")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Outlet deleted"})
}

// CreateRole handles POST /api/v1/roles
func (h *OrganizationHandler) CreateRole(c *gin.Context) {
	var req models.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	role, err := h.org.CreateRole(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, role)
}

// ListRoles handles GET /api/v1/roles
func (h *OrganizationHandler) ListRoles(c *gin.Context) {
	roles, err := h.org.ListRoles(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roles": roles})
}

// GetRole handles GET /api/v1/roles/:id
func (h *OrganizationHandler) GetRole(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	role, err := h.org.GetRole(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

// UpdateRole handles PUT /api/v1/roles/:id
func (h *OrganizationHandler) UpdateRole(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req models.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	role, err := h.org.UpdateRole(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

// DeleteRole handles DELETE /api/v1/roles/:id
func (h *OrganizationHandler) DeleteRole(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.org.DeleteRole(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Role deleted"})
}
