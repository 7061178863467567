package handlers

import (
	"context"

	"github.com/crewhire/onboarding-backend/internal/services"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// logAuditError logs audit service errors without failing the request
func logAuditError(logger *logrus.Logger, operation string, err error) {
	if err != nil {
		logger.WithError(err).WithField("operation", operation).Warn("Audit log write failed")
	}
}

func (h *AuthHandler) safeLogLogin(ctx context.Context, userID *uuid.UUID, email string, rc services.RequestContext, success bool, reason string) {
	if userID != nil {
		logAuditError(h.logger, "LogLogin", h.audit.LogLogin(ctx, *userID, email, rc.IPAddress, rc.UserAgent, success))
		return
	}
	logAuditError(h.logger, "LogLogin", h.audit.Log(ctx, services.AuditEvent{
		Action:     services.AuditLogin,
		EntityType: "staff_user",
		IPAddress:  rc.IPAddress,
		UserAgent:  rc.UserAgent,
		Details: map[string]interface{}{
			"email":   email,
			"success": false,
			"reason":  reason,
		},
	}))
}

func (h *AuthHandler) safeLogLogout(ctx context.Context, userID uuid.UUID, rc services.RequestContext) {
	logAuditError(h.logger, "LogLogout", h.audit.Log(ctx, services.AuditEvent{
		UserID:     &userID,
		Action:     services.AuditLogout,
		EntityType: "session",
		EntityID:   &userID,
		IPAddress:  rc.IPAddress,
		UserAgent:  rc.UserAgent,
	}))
}

func (h *AuthHandler) safeLogTokenRefresh(ctx context.Context, userID *uuid.UUID, rc services.RequestContext, success bool) {
	logAuditError(h.logger, "LogTokenRefresh", h.audit.Log(ctx, services.AuditEvent{
		UserID:     userID,
		Action:     services.AuditTokenRefresh,
		EntityType: "session",
		EntityID:   userID,
		IPAddress:  rc.IPAddress,
		UserAgent:  rc.UserAgent,
		Details: map[string]interface{}{
			"success": success,
		},
	}))
}

func (h *StaffHandler) safeLogStaffChange(ctx context.Context, actorID, targetID uuid.UUID, change string, rc services.RequestContext) {
	logAuditError(h.logger, "LogStaffChange", h.audit.Log(ctx, services.AuditEvent{
		UserID:     &actorID,
		Action:     services.AuditStaffChange,
		EntityType: "staff_user",
		EntityID:   &targetID,
		IPAddress:  rc.IPAddress,
		UserAgent:  rc.UserAgent,
		Details: map[string]interface{}{
			"change": change,
		},
	}))
}
