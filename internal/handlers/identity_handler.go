package handlers

import (
	"net/http"

	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// IdentityHandler handles PAN verification and the Aadhaar e-Sign flow
type IdentityHandler struct {
	identity *services.IdentityService
	logger   *logrus.Logger
}

// NewIdentityHandler creates a new identity handler
func NewIdentityHandler(identity *services.IdentityService, logger *logrus.Logger) *IdentityHandler {
	return &IdentityHandler{identity: identity, logger: logger}
}

// VerifyPAN handles POST /api/v1/onboarding/verify-pan
func (h *IdentityHandler) VerifyPAN(c *gin.Context) {
	candidate, ok := candidateFrom(c)
	if !ok {
		return
	}

	var req models.VerifyPANRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.identity.VerifyPAN(c.Request.Context(), candidate.Phone, req, requestContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// InitiateAadhaar handles POST /api/v1/onboarding/verify-aadhaar/initiate
func (h *IdentityHandler) InitiateAadhaar(c *gin.Context) {
	candidate, ok := candidateFrom(c)
	if !ok {
		return
	}

	var req models.InitiateAadhaarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.identity.InitiateAadhaarEsign(c.Request.Context(), candidate.Phone, req, requestContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"application_id": req.ApplicationID,
		"transaction_id": resp.TransactionID,
	}).Info("Aadhaar e-Sign initiated")
	c.JSON(http.StatusOK, resp)
}

// AadhaarStatus handles POST /api/v1/onboarding/verify-aadhaar/status
func (h *IdentityHandler) AadhaarStatus(c *gin.Context) {
	candidate, ok := candidateFrom(c)
	if !ok {
		return
	}

	var req models.AadhaarStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.identity.CheckAadhaarStatus(c.Request.Context(), candidate.Phone, req.TransactionID, requestContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Resume handles POST /api/v1/onboarding/resume. The resume token is the credential.
func (h *IdentityHandler) Resume(c *gin.Context) {
	var req models.ResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.identity.Resume(c.Request.Context(), req.ResumeToken, req.ClientID, requestContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
