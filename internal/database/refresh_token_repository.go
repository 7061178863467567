package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/internal/utils"
	"github.com/google/uuid"
)

// RefreshTokenRepository handles staff refresh token database operations.
// Tokens are stored as sha256 hashes only.
type RefreshTokenRepository struct {
	db DB
}

// NewRefreshTokenRepository creates a new refresh token repository
func NewRefreshTokenRepository(db DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// StoreRefreshToken stores a refresh token for a staff user
func (r *RefreshTokenRepository) StoreRefreshToken(ctx context.Context, userID uuid.UUID, token, ipAddress, userAgent string, expiresAt time.Time) error {
	var ipVal, userAgentVal interface{}
	if ipAddress != "" {
		ipVal = ipAddress
	}
	if userAgent != "" {
		userAgentVal = userAgent
	}

	query := `
		INSERT INTO staff_refresh_tokens (user_id, token_hash, ip_address, user_agent, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, userID, utils.HashToken(token), ipVal, userAgentVal, expiresAt); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken retrieves a refresh token by its raw value, or nil
func (r *RefreshTokenRepository) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	query := `
		SELECT id, user_id, token_hash, ip_address, user_agent, created_at, expires_at,
		       last_used_at, revoked, revoked_at
		FROM staff_refresh_tokens
		WHERE token_hash = $1
	`
	if err := r.db.GetContext(ctx, &refreshToken, query, utils.HashToken(token)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return &refreshToken, nil
}

// UpdateLastUsed touches the token's last_used_at
func (r *RefreshTokenRepository) UpdateLastUsed(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE staff_refresh_tokens SET last_used_at = NOW() WHERE token_hash = $1`, utils.HashToken(token))
	if err != nil {
		return fmt.Errorf("failed to update refresh token: %w", err)
	}
	return nil
}

// RevokeRefreshToken revokes a single token
func (r *RefreshTokenRepository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE staff_refresh_tokens SET revoked = true, revoked_at = NOW()
		WHERE token_hash = $1 AND revoked = false
	`, utils.HashToken(token))
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllUserTokens revokes every token of a user (password change, deactivation)
func (r *RefreshTokenRepository) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE staff_refresh_tokens SET revoked = true, revoked_at = NOW()
		WHERE user_id = $1 AND revoked = false
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return nil
}

// CleanupExpiredTokens deletes expired and revoked tokens
func (r *RefreshTokenRepository) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM staff_refresh_tokens WHERE expires_at < NOW() OR revoked = true`)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup refresh tokens: %w", err)
	}
	return result.RowsAffected()
}
