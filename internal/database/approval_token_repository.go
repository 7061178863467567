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
	"github.com/jmoiron/sqlx"
)

// ApprovalTokenRepository stores email approval link tokens as sha256 hashes
type ApprovalTokenRepository struct {
	db DB
}

// NewApprovalTokenRepository creates a new approval token repository
func NewApprovalTokenRepository(db DB) *ApprovalTokenRepository {
	return &ApprovalTokenRepository{db: db}
}

// Create stores the hash of token for the application
func (r *ApprovalTokenRepository) Create(ctx context.Context, applicationID uuid.UUID, token string, expiresAt time.Time) (*models.ApprovalToken, error) {
	record := &models.ApprovalToken{
		ID:            uuid.New(),
		ApplicationID: applicationID,
		TokenHash:     utils.HashToken(token),
		ExpiresAt:     expiresAt,
	}

	query := `
		INSERT INTO approval_tokens (id, application_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query, record.ID, record.ApplicationID, record.TokenHash, record.ExpiresAt).
		Scan(&record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create approval token: %w", err)
	}
	return record, nil
}

// Get returns the token record for the application and raw token, or nil
func (r *ApprovalTokenRepository) Get(ctx context.Context, applicationID uuid.UUID, token string) (*models.ApprovalToken, error) {
	var record models.ApprovalToken
	query := `
		SELECT id, application_id, token_hash, expires_at, used_at, created_at
		FROM approval_tokens
		WHERE application_id = $1 AND token_hash = $2
	`
	if err := r.db.GetContext(ctx, &record, query, applicationID, utils.HashToken(token)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get approval token: %w", err)
	}
	return &record, nil
}

// MarkUsed consumes the token inside tx. Returns false when it was already used or expired.
func (r *ApprovalTokenRepository) MarkUsed(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE approval_tokens SET used_at = NOW()
		WHERE id = $1 AND used_at IS NULL AND expires_at > NOW()
	`, id)
	if err != nil {
		return false, fmt.Errorf("failed to consume approval token: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// InvalidateForApplication expires every unused token of the application
func (r *ApprovalTokenRepository) InvalidateForApplication(ctx context.Context, applicationID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE approval_tokens SET used_at = NOW()
		WHERE application_id = $1 AND used_at IS NULL
	`, applicationID)
	if err != nil {
		return fmt.Errorf("failed to invalidate approval tokens: %w", err)
	}
	return nil
}

// CleanupExpired deletes used and expired tokens
func (r *ApprovalTokenRepository) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM approval_tokens WHERE used_at IS NOT NULL OR expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup approval tokens: %w", err)
	}
	return result.RowsAffected()
}
