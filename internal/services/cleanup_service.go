package services

import (
	"context"
	"fmt"
	"time"

	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// auditRetention is how long audit rows are kept
const auditRetention = 180 * 24 * time.Hour

// CleanupService removes expired OTPs, rate limit rows, approval tokens,
// refresh tokens and old audit logs on a schedule
type CleanupService struct {
	cron          *cron.Cron
	otp           *OTPService
	rateLimit     *RateLimitService
	audit         *AuditService
	tokens        *database.ApprovalTokenRepository
	refreshTokens *database.RefreshTokenRepository
	logger        *logrus.Logger
}

// CleanupResult counts the rows removed by one run
type CleanupResult struct {
	OTPs           int64 `json:"otps"`
	RateLimits     int64 `json:"rate_limits"`
	ApprovalTokens int64 `json:"approval_tokens"`
	RefreshTokens  int64 `json:"refresh_tokens"`
	AuditLogs      int64 `json:"audit_logs"`
}

// NewCleanupService creates a new cleanup service
func NewCleanupService(
	otp *OTPService,
	rateLimit *RateLimitService,
	audit *AuditService,
	tokens *database.ApprovalTokenRepository,
	refreshTokens *database.RefreshTokenRepository,
	logger *logrus.Logger,
) *CleanupService {
	return &CleanupService{
		cron:          cron.New(),
		otp:           otp,
		rateLimit:     rateLimit,
		audit:         audit,
		tokens:        tokens,
		refreshTokens: refreshTokens,
		logger:        logger,
	}
}

// Start schedules the hourly cleanup job
func (s *CleanupService) Start() error {
	if _, err := s.cron.AddFunc("@hourly", s.cleanupJob); err != nil {
		return fmt.Errorf("failed to schedule cleanup job: %w", err)
	}
	s.cron.Start()
	s.logger.Info("Cleanup job scheduled (hourly)")
	return nil
}

// Stop waits for a running job to finish
func (s *CleanupService) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Cleanup job stopped")
}

func (s *CleanupService) cleanupJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.WithError(err).Error("Cleanup job failed")
	}
}

// RunOnce runs every cleanup step once. Steps continue after a failure; the first error is returned.
func (s *CleanupService) RunOnce(ctx context.Context) (*CleanupResult, error) {
	start := time.Now()
	result := &CleanupResult{}
	var firstErr error

	step := func(name string, dst *int64, fn func(context.Context) (int64, error)) {
		n, err := fn(ctx)
		if err != nil {
			s.logger.WithError(err).WithField("step", name).Warn("Cleanup step failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", name, err)
			}
			return
		}
		*dst = n
	}

	step("otps", &result.OTPs, s.otp.CleanupExpiredOTPs)
	step("rate_limits", &result.RateLimits, s.rateLimit.CleanupExpiredRateLimits)
	step("approval_tokens", &result.ApprovalTokens, s.tokens.CleanupExpired)
	step("refresh_tokens", &result.RefreshTokens, s.refreshTokens.CleanupExpiredTokens)
	step("audit_logs", &result.AuditLogs, func(ctx context.Context) (int64, error) {
		return s.audit.CleanupOldAuditLogs(ctx, auditRetention)
	})

	s.logger.WithFields(logrus.Fields{
		"otps":            result.OTPs,
		"rate_limits":     result.RateLimits,
		"approval_tokens": result.ApprovalTokens,
		"refresh_tokens":  result.RefreshTokens,
		"audit_logs":      result.AuditLogs,
		"duration":        time.Since(start).String(),
	}).Info("Cleanup finished")

	return result, firstErr
}
