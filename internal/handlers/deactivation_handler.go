package handlers

import (
	"net/http"

	"github.com/crewhire/onboarding-backend/internal/middleware"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DeactivationHandler handles deactivation and termination requests
type DeactivationHandler struct {
	deactivations *services.DeactivationService
	logger        *logrus.Logger
}

// NewDeactivationHandler creates a new deactivation handler
func NewDeactivationHandler(deactivations *services.DeactivationService, logger *logrus.Logger) *DeactivationHandler {
	return &DeactivationHandler{deactivations: deactivations, logger: logger}
}

// Create handles POST /api/v1/deactivation-requests
func (h *DeactivationHandler) Create(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.CreateDeactivationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	record, err := h.deactivations.Create(c.Request.Context(), userCtx.Actor(), req, requestContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"request_id":     record.ID,
		"application_id": record.ApplicationID,
		"kind":           record.Kind,
	}).Info("Deactivation requested")
	c.JSON(http.StatusCreated, record)
}

// List handles GET /api/v1/deactivation-requests?status=
func (h *DeactivationHandler) List(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	records, err := h.deactivations.List(c.Request.Context(), userCtx.Actor(), models.RequestStatus(c.Query("status")))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": records})
}

// Resolve handles POST /api/v1/deactivation-requests/:id/resolve
func (h *DeactivationHandler) Resolve(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req models.ResolveDeactivationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	record, err := h.deactivations.Resolve(c.Request.Context(), userCtx.Actor(), id, req, requestContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, record)
}
