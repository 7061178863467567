package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/internal/services"
	"github.com/crewhire/onboarding-backend/internal/utils"
	"github.com/crewhire/onboarding-backend/pkg/kyc"
	"github.com/crewhire/onboarding-backend/pkg/validator"
	"github.com/gin-gonic/gin"
	playground "github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type errorMapping struct {
	target  error
	status  int
	errCode string
	code    string
}

// errorMappings is checked in order with errors.Is
var errorMappings = []errorMapping{
	// identity vendor
	{kyc.ErrSessionNotFound, http.StatusGone, "session_expired", "SESSION_NOT_FOUND"},
	{kyc.ErrPANNotFound, http.StatusUnprocessableEntity, "pan_not_found", "PAN_NOT_FOUND"},
	{services.ErrVerificationFailed, http.StatusBadGateway, "verification_failed", "VERIFICATION_FAILED"},
	{services.ErrResumeExpired, http.StatusGone, "session_expired", "RESUME_EXPIRED"},
	{services.ErrResumeMismatch, http.StatusBadRequest, "invalid_request", "RESUME_MISMATCH"},

	// OTP
	{services.ErrOTPExpired, http.StatusBadRequest, "otp_expired", "OTP_EXPIRED"},
	{services.ErrOTPInvalid, http.StatusBadRequest, "invalid_otp", "INVALID_OTP"},
	{services.ErrMaxAttemptsExceeded, http.StatusTooManyRequests, "max_attempts_exceeded", "MAX_ATTEMPTS_EXCEEDED"},
	{services.ErrNoOTPFound, http.StatusBadRequest, "otp_not_found", "OTP_NOT_FOUND"},
	{services.ErrOTPAlreadyUsed, http.StatusBadRequest, "otp_already_used", "OTP_ALREADY_USED"},

	// staff auth
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized", "INVALID_CREDENTIALS"},
	{services.ErrAccountInactive, http.StatusForbidden, "forbidden", "ACCOUNT_INACTIVE"},
	{services.ErrInvalidRefreshToken, http.StatusUnauthorized, "invalid_token", "INVALID_REFRESH_TOKEN"},
	{services.ErrIncorrectPassword, http.StatusBadRequest, "invalid_request", "INCORRECT_PASSWORD"},
	{services.ErrForbidden, http.StatusForbidden, "forbidden", "INSUFFICIENT_PERMISSIONS"},
	{services.ErrPhoneMismatch, http.StatusForbidden, "forbidden", "PHONE_MISMATCH"},

	// approval links
	{services.ErrInvalidApprovalToken, http.StatusUnauthorized, "invalid_token", "INVALID_APPROVAL_TOKEN"},
	{services.ErrApprovalTokenExpired, http.StatusGone, "token_expired", "APPROVAL_TOKEN_EXPIRED"},
	{services.ErrApprovalTokenUsed, http.StatusConflict, "token_used", "APPROVAL_TOKEN_USED"},
	{services.ErrNoApprover, http.StatusUnprocessableEntity, "no_approver", "NO_APPROVER"},

	// not found
	{services.ErrApplicationNotFound, http.StatusNotFound, "not_found", "APPLICATION_NOT_FOUND"},
	{services.ErrUserNotFound, http.StatusNotFound, "not_found", "USER_NOT_FOUND"},
	{services.ErrOutletNotFound, http.StatusNotFound, "not_found", "OUTLET_NOT_FOUND"},
	{services.ErrRoleNotFound, http.StatusNotFound, "not_found", "ROLE_NOT_FOUND"},
	{services.ErrDeactivationNotFound, http.StatusNotFound, "not_found", "DEACTIVATION_NOT_FOUND"},
	{services.ErrDocumentNotFound, http.StatusNotFound, "not_found", "DOCUMENT_NOT_FOUND"},

	// conflicts
	{models.ErrInvalidTransition, http.StatusConflict, "invalid_transition", "INVALID_TRANSITION"},
	{services.ErrNotEditable, http.StatusConflict, "invalid_transition", "NOT_EDITABLE"},
	{services.ErrAlreadyResolved, http.StatusConflict, "conflict", "ALREADY_RESOLVED"},
	{services.ErrEmailTaken, http.StatusConflict, "conflict", "EMAIL_TAKEN"},
	{services.ErrOutletExists, http.StatusConflict, "conflict", "OUTLET_EXISTS"},
	{services.ErrRoleExists, http.StatusConflict, "conflict", "ROLE_EXISTS"},
	{services.ErrRoleInUse, http.StatusConflict, "conflict", "ROLE_IN_USE"},

	// bad input
	{services.ErrInvalidRole, http.StatusBadRequest, "validation_error", "INVALID_ROLE"},
	{services.ErrOutletScopeRequired, http.StatusBadRequest, "validation_error", "OUTLET_SCOPE_REQUIRED"},
	{services.ErrInvalidPayload, http.StatusBadRequest, "invalid_request", "INVALID_PAYLOAD"},
}

// respondError maps a service error onto the HTTP error taxonomy.
// Unknown errors are logged and answered with a 500 that hides the cause.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var fieldErrs validator.FieldErrors
	if errors.As(err, &fieldErrs) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Some fields are invalid",
			Code:    "VALIDATION_FAILED",
			Fields:  fieldErrs,
		})
		return
	}

	var rlErr *services.RateLimitError
	if errors.As(err, &rlErr) {
		retryAfter := int(time.Until(rlErr.RetryAfter).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error:   "rate_limit_exceeded",
			Message: rlErr.Message,
			Code:    "RATE_LIMIT_EXCEEDED",
		})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			message := m.target.Error()
			if m.target == services.ErrVerificationFailed {
				message = verificationMessage(err)
			}
			c.JSON(m.status, ErrorResponse{
				Error:   m.errCode,
				Message: message,
				Code:    m.code,
			})
			return
		}
	}

	logger.WithFields(logrus.Fields{
		"path":  c.Request.URL.Path,
		"error": err.Error(),
	}).Error("Request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Something went wrong, please try again",
		Code:    "INTERNAL_ERROR",
	})
}

// verificationMessage surfaces what the vendor said so the candidate can act on it
func verificationMessage(err error) string {
	var apiErr *kyc.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case errors.Is(err, kyc.ErrUnreachable):
		return kyc.ErrUnreachable.Error()
	}
	return services.ErrVerificationFailed.Error()
}

// respondBindError reports a request body that failed to bind.
// Validation tag failures are returned per field like service validation errors.
func respondBindError(c *gin.Context, err error) {
	var verrs playground.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[jsonFieldName(fe)] = bindMessage(fe)
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Some fields are invalid",
			Code:    "VALIDATION_FAILED",
			Fields:  fields,
		})
		return
	}

	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: "Invalid request body",
		Code:    "INVALID_REQUEST",
	})
}

// jsonFieldName converts a struct field name like OutletCodes to outlet_codes
func jsonFieldName(fe playground.FieldError) string {
	name := fe.Field()
	var b strings.Builder
	prevLower := false
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			if prevLower {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
			prevLower = false
		} else {
			prevLower = true
		}
		b.WriteRune(r)
	}
	return b.String()
}

func bindMessage(fe playground.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Enter a valid email address"
	case "min":
		return "Must be at least " + fe.Param() + " characters"
	case "len":
		return "Must be exactly " + fe.Param() + " characters"
	default:
		return "Invalid value"
	}
}

// requestContext collects the caller metadata services use for auditing and rate limits
func requestContext(c *gin.Context) services.RequestContext {
	return services.RequestContext{
		IPAddress: utils.ClientIP(c),
		UserAgent: utils.UserAgent(c),
	}
}
