package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/crewhire/onboarding-backend/internal/middleware"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/internal/services"
	"github.com/crewhire/onboarding-backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxDraftBytes bounds a draft payload
const maxDraftBytes = 256 << 10

// OnboardingHandler handles candidate drafts, OTP and the staff application views
type OnboardingHandler struct {
	onboarding *services.OnboardingService
	phones     *validator.PhoneValidator
	logger     *logrus.Logger
}

// NewOnboardingHandler creates a new onboarding handler
func NewOnboardingHandler(onboarding *services.OnboardingService, logger *logrus.Logger) *OnboardingHandler {
	return &OnboardingHandler{
		onboarding: onboarding,
		phones:     validator.NewPhoneValidator(),
		logger:     logger,
	}
}

// SendOTP handles POST /api/v1/onboarding/send-otp
func (h *OnboardingHandler) SendOTP(c *gin.Context) {
	var req models.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.onboarding.SendPhoneOTP(c.Request.Context(), req.Phone, requestContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// VerifyOTP handles POST /api/v1/onboarding/verify-otp
func (h *OnboardingHandler) VerifyOTP(c *gin.Context) {
	var req models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.onboarding.VerifyPhoneOTP(c.Request.Context(), req.Phone, req.OTP, requestContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SendEmailOTP handles POST /api/v1/onboarding/send-email-otp
func (h *OnboardingHandler) SendEmailOTP(c *gin.Context) {
	candidate, ok := candidateFrom(c)
	if !ok {
		return
	}

	var req models.SendEmailOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.onboarding.SendEmailOTP(c.Request.Context(), candidate.Phone, req.Email, requestContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// VerifyEmailOTP handles POST /api/v1/onboarding/verify-email-otp
func (h *OnboardingHandler) VerifyEmailOTP(c *gin.Context) {
	candidate, ok := candidateFrom(c)
	if !ok {
		return
	}

	var req models.VerifyEmailOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.onboarding.VerifyEmailOTP(c.Request.Context(), candidate.Phone, req.Email, req.OTP, requestContext(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true})
}

// GetDraft handles GET /api/v1/onboarding/draft/:phone
func (h *OnboardingHandler) GetDraft(c *gin.Context) {
	candidate, ok := candidateFrom(c)
	if !ok {
		return
	}

	phone, err := h.phones.Validate(c.Param("phone"))
	if err != nil || phone != candidate.Phone {
		respondError(c, h.logger, services.ErrPhoneMismatch)
		return
	}

	app, err := h.onboarding.GetDraft(c.Request.Context(), phone)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// SaveDraft handles POST /api/v1/onboarding/draft.
// The body is checked against the draft schema before it is decoded.
func (h *OnboardingHandler) SaveDraft(c *gin.Context) {
	candidate, ok := candidateFrom(c)
	if !ok {
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDraftBytes+1))
	if err != nil || len(raw) > maxDraftBytes {
		respondError(c, h.logger, services.ErrInvalidPayload)
		return
	}

	req, err := h.onboarding.DecodeDraft(raw)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	app, err := h.onboarding.SaveDraft(c.Request.Context(), candidate.Phone, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// Submit handles POST /api/v1/onboarding/:id/submit
func (h *OnboardingHandler) Submit(c *gin.Context) {
	candidate, ok := candidateFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	app, err := h.onboarding.Submit(c.Request.Context(), id, candidate.Phone, requestContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithField("application_id", id).Info("Application submitted")
	c.JSON(http.StatusOK, app)
}

// List handles GET /api/v1/onboarding
func (h *OnboardingHandler) List(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	filter := models.ApplicationFilter{
		Status:     models.ApplicationStatus(c.Query("status")),
		OutletCode: strings.TrimSpace(c.Query("outlet")),
		Search:     strings.TrimSpace(c.Query("search")),
		Limit:      queryInt(c, "limit"),
		Offset:     queryInt(c, "offset"),
	}

	resp, err := h.onboarding.List(c.Request.Context(), userCtx.Actor(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get handles GET /api/v1/onboarding/:id
func (h *OnboardingHandler) Get(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	app, err := h.onboarding.Get(c.Request.Context(), userCtx.Actor(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// Activate handles POST /api/v1/onboarding/:id/activate
func (h *OnboardingHandler) Activate(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	app, err := h.onboarding.Activate(c.Request.Context(), userCtx.Actor(), id, requestContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// candidateFrom returns the verified candidate or answers 401
func candidateFrom(c *gin.Context) (middleware.CandidateContext, bool) {
	candidate, ok := middleware.GetCandidateContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Verify your phone number first",
			Code:    "MISSING_USER_CONTEXT",
		})
		return middleware.CandidateContext{}, false
	}
	return candidate, true
}

// parseID reads the :id path parameter
func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid id",
			Code:    "INVALID_ID",
		})
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
