package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/crewhire/onboarding-backend/internal/utils"
	"github.com/google/uuid"
)

// Audit actions
const (
	AuditOTPRequest        = "otp_request"
	AuditOTPVerify         = "otp_verify"
	AuditRateLimit         = "rate_limit_violation"
	AuditLogin             = "login"
	AuditLogout            = "logout"
	AuditTokenRefresh      = "token_refresh"
	AuditPANVerification   = "pan_verification"
	AuditAadhaarInitiate   = "aadhaar_esign_initiate"
	AuditAadhaarStatus     = "aadhaar_esign_status"
	AuditSubmit            = "application_submit"
	AuditApprovalRequested = "approval_requested"
	AuditApprovalDecision  = "approval_decision"
	AuditDeactivation      = "deactivation"
	AuditActivation        = "application_activate"
	AuditStaffChange       = "staff_change"
)

// AuditService handles audit logging for security events
type AuditService struct {
	db      database.DB
	enabled bool
}

// NewAuditService creates a new audit service. A disabled service drops every event.
func NewAuditService(db database.DB, enabled bool) *AuditService {
	return &AuditService{
		db:      db,
		enabled: enabled,
	}
}

// AuditEvent represents a security event to be logged
type AuditEvent struct {
	UserID     *uuid.UUID // nil for candidate and pre-authentication events
	Action     string
	EntityType string // "otp", "application", "staff_user", "session"
	EntityID   *uuid.UUID
	IPAddress  string
	UserAgent  string
	Details    map[string]interface{}
}

// LogOTPRequest logs an OTP generation request
func (s *AuditService) LogOTPRequest(ctx context.Context, recipient, channel, ipAddress, userAgent string, success bool, reason string) error {
	details := map[string]interface{}{
		"recipient":   recipient,
		"channel":     channel,
		"success":     success,
		"device_info": utils.ParseUserAgent(userAgent),
	}
	if reason != "" {
		details["reason"] = reason
	}

	return s.Log(ctx, AuditEvent{
		Action:     AuditOTPRequest,
		EntityType: "otp",
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details:    details,
	})
}

// LogOTPVerification logs an OTP verification attempt
func (s *AuditService) LogOTPVerification(ctx context.Context, recipient, channel string, success bool, ipAddress, userAgent, failureReason string) error {
	details := map[string]interface{}{
		"recipient": recipient,
		"channel":   channel,
		"success":   success,
	}
	if failureReason != "" {
		details["failure_reason"] = failureReason
	}

	return s.Log(ctx, AuditEvent{
		Action:     AuditOTPVerify,
		EntityType: "otp",
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details:    details,
	})
}

// LogRateLimitViolation logs a rate limit hit
func (s *AuditService) LogRateLimitViolation(ctx context.Context, recipient, ipAddress, userAgent, limitType string, retryAfter time.Time) error {
	return s.Log(ctx, AuditEvent{
		Action:     AuditRateLimit,
		EntityType: "otp",
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details: map[string]interface{}{
			"recipient":   recipient,
			"limit_type":  limitType,
			"retry_after": retryAfter,
		},
	})
}

// LogLogin logs a staff login
func (s *AuditService) LogLogin(ctx context.Context, userID uuid.UUID, email, ipAddress, userAgent string, success bool) error {
	id := userID
	return s.Log(ctx, AuditEvent{
		UserID:     &id,
		Action:     AuditLogin,
		EntityType: "staff_user",
		EntityID:   &id,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details: map[string]interface{}{
			"email":       email,
			"success":     success,
			"device_info": utils.ParseUserAgent(userAgent),
		},
	})
}

// LogApplicationEvent logs an action on an onboarding application
func (s *AuditService) LogApplicationEvent(ctx context.Context, actor *uuid.UUID, action string, applicationID uuid.UUID, ipAddress, userAgent string, details map[string]interface{}) error {
	id := applicationID
	return s.Log(ctx, AuditEvent{
		UserID:     actor,
		Action:     action,
		EntityType: "application",
		EntityID:   &id,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details:    details,
	})
}

// Log writes the event to the audit_logs table
func (s *AuditService) Log(ctx context.Context, event AuditEvent) error {
	if !s.enabled {
		return nil
	}

	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (user_id, action, entity_type, entity_id, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	_, err = s.db.ExecContext(ctx, query,
		event.UserID,
		event.Action,
		event.EntityType,
		event.EntityID,
		event.IPAddress,
		event.UserAgent,
		details,
	)
	if err != nil {
		return fmt.Errorf("failed to log audit event: %w", err)
	}

	return nil
}

// CleanupOldAuditLogs removes audit logs older than the specified duration
func (s *AuditService) CleanupOldAuditLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old audit logs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
