package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/internal/services"
	"github.com/crewhire/onboarding-backend/pkg/kyc"
	"github.com/crewhire/onboarding-backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errorRouter(err error) *gin.Engine {
	router := gin.New()
	router.GET("/fail", func(c *gin.Context) {
		respondError(c, quietLogger(), err)
	})
	return router
}

func TestRespondError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"vendor session gone", fmt.Errorf("check status: %w", kyc.ErrSessionNotFound), http.StatusGone, "SESSION_NOT_FOUND"},
		{"vendor failure", fmt.Errorf("pan lookup: %w", services.ErrVerificationFailed), http.StatusBadGateway, "VERIFICATION_FAILED"},
		{"resume expired", services.ErrResumeExpired, http.StatusGone, "RESUME_EXPIRED"},
		{"bad otp", services.ErrOTPInvalid, http.StatusBadRequest, "INVALID_OTP"},
		{"otp attempts", services.ErrMaxAttemptsExceeded, http.StatusTooManyRequests, "MAX_ATTEMPTS_EXCEEDED"},
		{"credentials", services.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"inactive", services.ErrAccountInactive, http.StatusForbidden, "ACCOUNT_INACTIVE"},
		{"phone mismatch", services.ErrPhoneMismatch, http.StatusForbidden, "PHONE_MISMATCH"},
		{"approval used", services.ErrApprovalTokenUsed, http.StatusConflict, "APPROVAL_TOKEN_USED"},
		{"approval expired", services.ErrApprovalTokenExpired, http.StatusGone, "APPROVAL_TOKEN_EXPIRED"},
		{"application missing", services.ErrApplicationNotFound, http.StatusNotFound, "APPLICATION_NOT_FOUND"},
		{"transition", fmt.Errorf("submit: %w", models.ErrInvalidTransition), http.StatusConflict, "INVALID_TRANSITION"},
		{"role in use", services.ErrRoleInUse, http.StatusConflict, "ROLE_IN_USE"},
		{"bad payload", services.ErrInvalidPayload, http.StatusBadRequest, "INVALID_PAYLOAD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(errorRouter(tt.err), http.MethodGet, "/fail", "", nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestRespondError_SessionExpiredBody(t *testing.T) {
	w := doJSON(errorRouter(kyc.ErrSessionNotFound), http.MethodGet, "/fail", "", nil)

	resp := decodeError(t, w)
	assert.Equal(t, "session_expired", resp.Error)
	assert.NotEmpty(t, resp.Message)
}

func TestRespondError_VendorMessage(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{
			"vendor text is passed through",
			fmt.Errorf("%w: %w", services.ErrVerificationFailed, &kyc.APIError{StatusCode: http.StatusServiceUnavailable, Message: "Source (NSDL) unavailable, try after some time"}),
			"Source (NSDL) unavailable, try after some time",
		},
		{
			"network failure",
			fmt.Errorf("%w: %w", services.ErrVerificationFailed, fmt.Errorf("%w: %w", kyc.ErrUnreachable, context.DeadlineExceeded)),
			kyc.ErrUnreachable.Error(),
		},
		{
			"vendor without a message",
			fmt.Errorf("%w: %w", services.ErrVerificationFailed, &kyc.APIError{StatusCode: http.StatusInternalServerError}),
			services.ErrVerificationFailed.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(errorRouter(tt.err), http.MethodGet, "/fail", "", nil)

			require.Equal(t, http.StatusBadGateway, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, "VERIFICATION_FAILED", resp.Code)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestRespondError_FieldErrors(t *testing.T) {
	err := fmt.Errorf("save draft: %w", validator.FieldErrors{
		"pan_number": "Enter a valid PAN",
		"full_name":  "This field is required",
	})

	w := doJSON(errorRouter(err), http.MethodGet, "/fail", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, "validation_error", resp.Error)
	assert.Equal(t, "VALIDATION_FAILED", resp.Code)
	assert.Equal(t, "Enter a valid PAN", resp.Fields["pan_number"])
	assert.Len(t, resp.Fields, 2)
}

func TestRespondError_RateLimit(t *testing.T) {
	err := &services.RateLimitError{
		Message:    "Too many OTP requests",
		RetryAfter: time.Now().Add(90 * time.Second),
		Type:       "recipient",
	}

	w := doJSON(errorRouter(err), http.MethodGet, "/fail", "", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	retry, convErr := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, convErr)
	assert.InDelta(t, 90, retry, 2)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decodeError(t, w).Code)
}

func TestRespondError_UnknownHidesCause(t *testing.T) {
	w := doJSON(errorRouter(errors.New("pq: connection refused")), http.MethodGet, "/fail", "", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, w).Code)
}

func TestRespondBindError(t *testing.T) {
	router := gin.New()
	router.POST("/bind", func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	t.Run("Validation Tags", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/bind", "", map[string]string{"email": "not-an-email"})
		require.Equal(t, http.StatusBadRequest, w.Code)

		resp := decodeError(t, w)
		assert.Equal(t, "VALIDATION_FAILED", resp.Code)
		assert.Equal(t, "Enter a valid email address", resp.Fields["email"])
		assert.Equal(t, "This field is required", resp.Fields["password"])
	})

	t.Run("Malformed Body", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/bind", "", "{")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_REQUEST", decodeError(t, w).Code)
	})
}
