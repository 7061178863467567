package handlers

import (
	"net/http"
	"strconv"

	"github.com/crewhire/onboarding-backend/internal/middleware"
	"github.com/crewhire/onboarding-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ApprovalHandler handles approval requests and the emailed approval links
type ApprovalHandler struct {
	approvals *services.ApprovalService
	logger    *logrus.Logger
}

// NewApprovalHandler creates a new approval handler
func NewApprovalHandler(approvals *services.ApprovalService, logger *logrus.Logger) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals, logger: logger}
}

// RequestApproval handles POST /api/v1/onboarding/:id/request-approval
func (h *ApprovalHandler) RequestApproval(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	resp, err := h.approvals.RequestApproval(c.Request.Context(), userCtx.Actor(), id, requestContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"application_id": id,
		"requested_by":   userCtx.UserID,
	}).Info("Approval requested")
	c.JSON(http.StatusOK, resp)
}

// CheckToken handles GET /api/v1/onboarding/:id/check-token
func (h *ApprovalHandler) CheckToken(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	resp, err := h.approvals.CheckToken(c.Request.Context(), id, c.Query("token"), linkExpiry(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Approve handles GET /api/v1/onboarding/:id/approve-with-token
func (h *ApprovalHandler) Approve(c *gin.Context) {
	h.decide(c, true)
}

// Reject handles GET /api/v1/onboarding/:id/reject-with-token
func (h *ApprovalHandler) Reject(c *gin.Context) {
	h.decide(c, false)
}

func (h *ApprovalHandler) decide(c *gin.Context, approve bool) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	resp, err := h.approvals.Decide(c.Request.Context(), id, c.Query("token"), linkExpiry(c), approve, c.Query("reason"), requestContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"application_id": id,
		"status":         resp.Status,
	}).Info("Approval decision recorded")
	c.JSON(http.StatusOK, resp)
}

// linkExpiry reads the expiry carried in an approval link; a missing or bad value is 0
func linkExpiry(c *gin.Context) int64 {
	expiry, err := strconv.ParseInt(c.Query("expiry"), 10, 64)
	if err != nil {
		return 0
	}
	return expiry
}
