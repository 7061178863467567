package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/crewhire/onboarding-backend/internal/config"
	"github.com/crewhire/onboarding-backend/internal/database"
)

// Rate limit identifier types
const (
	LimitTypeRecipient = "recipient"
	LimitTypeIP        = "ip"
)

// RateLimitService handles OTP request rate limiting
type RateLimitService struct {
	db     database.DB
	config RateLimitConfig
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(db database.DB, cfg RateLimitConfig) *RateLimitService {
	return &RateLimitService{
		db:     db,
		config: cfg,
	}
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxRecipientRequests int           // Max OTP requests per phone or email
	RecipientWindow      time.Duration // Time window for recipient rate limit
	MaxIPRequests        int           // Max OTP requests per IP
	IPWindow             time.Duration // Time window for IP rate limit
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRecipientRequests: 3,
		RecipientWindow:      10 * time.Minute,
		MaxIPRequests:        10,
		IPWindow:             1 * time.Hour,
	}
}

// RateLimitConfigFromOTP applies the OTP_RATE_* settings over the defaults
func RateLimitConfigFromOTP(cfg config.OTPConfig) RateLimitConfig {
	rl := DefaultRateLimitConfig()
	if cfg.RateLimit > 0 {
		rl.MaxRecipientRequests = cfg.RateLimit
	}
	if cfg.RateWindowMinutes > 0 {
		rl.RecipientWindow = time.Duration(cfg.RateWindowMinutes) * time.Minute
	}
	return rl
}

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Type       string // "recipient" or "ip"
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// CheckOTPRateLimit checks if a recipient or IP has exceeded rate limits
func (s *RateLimitService) CheckOTPRateLimit(ctx context.Context, recipient, ip string) error {
	if recipient != "" {
		count, lastRequest, err := s.getRequestCount(ctx, recipient, LimitTypeRecipient, s.config.RecipientWindow)
		if err != nil {
			return fmt.Errorf("failed to check recipient rate limit: %w", err)
		}

		if count >= s.config.MaxRecipientRequests {
			retryAfter := lastRequest.Add(s.config.RecipientWindow)
			return &RateLimitError{
				Message:    fmt.Sprintf("Too many OTP requests for this recipient. Please try again after %s", retryAfter.Format("15:04:05")),
				RetryAfter: retryAfter,
				Type:       LimitTypeRecipient,
			}
		}
	}

	if ip != "" {
		count, lastRequest, err := s.getRequestCount(ctx, ip, LimitTypeIP, s.config.IPWindow)
		if err != nil {
			return fmt.Errorf("failed to check IP rate limit: %w", err)
		}

		if count >= s.config.MaxIPRequests {
			retryAfter := lastRequest.Add(s.config.IPWindow)
			return &RateLimitError{
				Message:    fmt.Sprintf("Too many OTP requests from this IP address. Please try again after %s", retryAfter.Format("15:04:05")),
				RetryAfter: retryAfter,
				Type:       LimitTypeIP,
			}
		}
	}

	return nil
}

func (s *RateLimitService) getRequestCount(ctx context.Context, identifier, identifierType string, window time.Duration) (int, time.Time, error) {
	query := `
		SELECT COUNT(*), COALESCE(MAX(created_at), NOW())
		FROM otp_rate_limits
		WHERE identifier = $1
		  AND identifier_type = $2
		  AND created_at > $3
	`

	var count int
	var lastRequest time.Time

	err := s.db.QueryRowxContext(ctx, query, identifier, identifierType, time.Now().Add(-window)).Scan(&count, &lastRequest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, err
	}

	return count, lastRequest, nil
}

// RecordOTPRequest records an OTP request for rate limiting
func (s *RateLimitService) RecordOTPRequest(ctx context.Context, recipient, ip string) error {
	if recipient != "" {
		if err := s.recordRequest(ctx, recipient, LimitTypeRecipient); err != nil {
			return fmt.Errorf("failed to record recipient request: %w", err)
		}
	}

	if ip != "" {
		if err := s.recordRequest(ctx, ip, LimitTypeIP); err != nil {
			return fmt.Errorf("failed to record IP request: %w", err)
		}
	}

	return nil
}

func (s *RateLimitService) recordRequest(ctx context.Context, identifier, identifierType string) error {
	query := `
		INSERT INTO otp_rate_limits (identifier, identifier_type, created_at)
		VALUES ($1, $2, NOW())
	`

	_, err := s.db.ExecContext(ctx, query, identifier, identifierType)
	return err
}

// CleanupExpiredRateLimits removes records older than the longest window
func (s *RateLimitService) CleanupExpiredRateLimits(ctx context.Context) (int64, error) {
	maxWindow := s.config.IPWindow
	if s.config.RecipientWindow > maxWindow {
		maxWindow = s.config.RecipientWindow
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM otp_rate_limits WHERE created_at < $1`, time.Now().Add(-maxWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup rate limits: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
