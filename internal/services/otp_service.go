package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/crewhire/onboarding-backend/internal/config"
	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/crewhire/onboarding-backend/internal/models"
)

const (
	// OTPLength is the length of the OTP code
	OTPLength = 6

	// OTPExpiryDuration is how long an OTP is valid (5 minutes)
	OTPExpiryDuration = 5 * time.Minute

	// MaxOTPAttempts is the maximum number of validation attempts
	MaxOTPAttempts = 3
)

var (
	// ErrOTPExpired indicates the OTP has expired
	ErrOTPExpired = errors.New("OTP has expired")

	// ErrOTPInvalid indicates the OTP is incorrect
	ErrOTPInvalid = errors.New("invalid OTP code")

	// ErrMaxAttemptsExceeded indicates too many failed validation attempts
	ErrMaxAttemptsExceeded = errors.New("maximum OTP validation attempts exceeded")

	// ErrNoOTPFound indicates no pending OTP exists for the identifier
	ErrNoOTPFound = errors.New("no OTP found for this recipient")

	// ErrOTPAlreadyUsed indicates the OTP has already been successfully validated
	ErrOTPAlreadyUsed = errors.New("OTP has already been used")
)

// OTPService handles OTP generation and validation for phone and email recipients
type OTPService struct {
	db          database.DB
	expiry      time.Duration
	maxAttempts int
}

// NewOTPService creates a new OTP service
func NewOTPService(db database.DB, cfg config.OTPConfig) *OTPService {
	s := &OTPService{
		db:          db,
		expiry:      OTPExpiryDuration,
		maxAttempts: MaxOTPAttempts,
	}
	if cfg.ExpiryMinutes > 0 {
		s.expiry = time.Duration(cfg.ExpiryMinutes) * time.Minute
	}
	if cfg.MaxAttempts > 0 {
		s.maxAttempts = cfg.MaxAttempts
	}
	return s
}

// Expiry returns how long a generated OTP stays valid
func (s *OTPService) Expiry() time.Duration {
	return s.expiry
}

// GenerateOTP invalidates pending codes for the recipient and stores a fresh one
func (s *OTPService) GenerateOTP(ctx context.Context, identifier string, channel models.OTPChannel, ipAddress, userAgent string) (string, error) {
	if err := s.InvalidateOTP(ctx, identifier, channel); err != nil {
		return "", fmt.Errorf("failed to invalidate existing OTP: %w", err)
	}

	otp, err := generateRandomOTP()
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}

	query := `
		INSERT INTO otp_verifications (identifier, channel, otp_code, expires_at, attempts, max_attempts, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7)
	`

	_, err = s.db.ExecContext(ctx, query, identifier, string(channel), otp, time.Now().Add(s.expiry), s.maxAttempts, ipAddress, userAgent)
	if err != nil {
		return "", fmt.Errorf("failed to store OTP: %w", err)
	}

	return otp, nil
}

// ValidateOTP checks otp against the latest pending code.
// Every attempt counts, including the successful one.
func (s *OTPService) ValidateOTP(ctx context.Context, identifier string, channel models.OTPChannel, otp string) (bool, error) {
	record, err := s.getOTPRecord(ctx, identifier, channel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNoOTPFound
		}
		return false, fmt.Errorf("failed to get OTP record: %w", err)
	}

	if record.Verified {
		return false, ErrOTPAlreadyUsed
	}

	if time.Now().After(record.ExpiresAt) {
		return false, ErrOTPExpired
	}

	if record.Attempts >= record.MaxAttempts {
		return false, ErrMaxAttemptsExceeded
	}

	if err := s.incrementAttempts(ctx, record.ID); err != nil {
		return false, err
	}

	if record.OTPCode != otp {
		return false, ErrOTPInvalid
	}

	if err := s.markAsVerified(ctx, record.ID); err != nil {
		return false, err
	}

	return true, nil
}

// InvalidateOTP marks every pending code for the recipient as used
func (s *OTPService) InvalidateOTP(ctx context.Context, identifier string, channel models.OTPChannel) error {
	query := `
		UPDATE otp_verifications
		SET verified = true
		WHERE identifier = $1 AND channel = $2 AND verified = false
	`

	if _, err := s.db.ExecContext(ctx, query, identifier, string(channel)); err != nil {
		return fmt.Errorf("failed to invalidate OTP: %w", err)
	}

	return nil
}

// GetRemainingAttempts returns the number of remaining validation attempts
func (s *OTPService) GetRemainingAttempts(ctx context.Context, identifier string, channel models.OTPChannel) (int, error) {
	record, err := s.getOTPRecord(ctx, identifier, channel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNoOTPFound
		}
		return 0, fmt.Errorf("failed to get OTP record: %w", err)
	}

	remaining := record.MaxAttempts - record.Attempts
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}

// CleanupExpiredOTPs removes all expired OTP records from the database
func (s *OTPService) CleanupExpiredOTPs(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM otp_verifications WHERE expires_at < $1`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired OTPs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

func (s *OTPService) getOTPRecord(ctx context.Context, identifier string, channel models.OTPChannel) (*models.OTPVerification, error) {
	query := `
		SELECT id, identifier, channel, otp_code, created_at, expires_at, verified, verified_at,
		       attempts, max_attempts, ip_address, user_agent
		FROM otp_verifications
		WHERE identifier = $1 AND channel = $2 AND verified = false
		ORDER BY created_at DESC
		LIMIT 1
	`

	var otp models.OTPVerification
	if err := s.db.QueryRowxContext(ctx, query, identifier, string(channel)).StructScan(&otp); err != nil {
		return nil, err
	}

	return &otp, nil
}

func (s *OTPService) incrementAttempts(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE otp_verifications SET attempts = attempts + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to increment attempts: %w", err)
	}
	return nil
}

func (s *OTPService) markAsVerified(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE otp_verifications SET verified = true, verified_at = $1 WHERE id = $2`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark OTP as verified: %w", err)
	}
	return nil
}

// generateRandomOTP generates a cryptographically secure random 6-digit OTP
func generateRandomOTP() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", OTPLength, n.Int64()), nil
}
