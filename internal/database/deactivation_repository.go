package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const deactivationSelect = `
	SELECT d.id, d.application_id, d.requested_by, d.kind, d.reason, d.status,
	       d.resolved_by, d.resolution_note, a.outlet_code, d.created_at, d.resolved_at
	FROM deactivation_requests d
	JOIN onboarding_applications a ON a.id = d.application_id`

// DeactivationRepository handles deactivation request database operations
type DeactivationRepository struct {
	db DB
}

// NewDeactivationRepository creates a new deactivation repository
func NewDeactivationRepository(db DB) *DeactivationRepository {
	return &DeactivationRepository{db: db}
}

// Create inserts a pending request inside tx
func (r *DeactivationRepository) Create(ctx context.Context, tx *sqlx.Tx, req *models.DeactivationRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.Status = models.RequestPending

	query := `
		INSERT INTO deactivation_requests (id, application_id, requested_by, kind, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := tx.QueryRowxContext(ctx, query, req.ID, req.ApplicationID, req.RequestedBy, string(req.Kind), req.Reason, string(req.Status)).
		Scan(&req.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create deactivation request: %w", err)
	}
	return nil
}

// GetByID returns the request, or nil
func (r *DeactivationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DeactivationRequest, error) {
	var req models.DeactivationRequest
	if err := r.db.GetContext(ctx, &req, deactivationSelect+` WHERE d.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get deactivation request: %w", err)
	}
	return &req, nil
}

// List returns requests filtered by status and outlet scope
func (r *DeactivationRepository) List(ctx context.Context, status models.RequestStatus, outletCodes []string) ([]models.DeactivationRequest, error) {
	reqs := []models.DeactivationRequest{}
	query := deactivationSelect + `
		WHERE ($1 = '' OR d.status = $1)
		  AND ($2::text[] IS NULL OR a.outlet_code = ANY($2::text[]))
		ORDER BY d.created_at DESC
	`
	if err := r.db.SelectContext(ctx, &reqs, query, string(status), scopeArg(outletCodes)); err != nil {
		return nil, fmt.Errorf("failed to list deactivation requests: %w", err)
	}
	return reqs, nil
}

// Resolve closes a pending request inside tx. Returns false if it was already resolved.
func (r *DeactivationRepository) Resolve(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status models.RequestStatus, resolvedBy uuid.UUID, note *string) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE deactivation_requests
		SET status = $2, resolved_by = $3, resolution_note = $4, resolved_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, string(status), resolvedBy, note)
	if err != nil {
		return false, fmt.Errorf("failed to resolve deactivation request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// CountPending counts open requests in scope
func (r *DeactivationRepository) CountPending(ctx context.Context, outletCodes []string) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM deactivation_requests d
		JOIN onboarding_applications a ON a.id = d.application_id
		WHERE d.status = 'pending' AND ($1::text[] IS NULL OR a.outlet_code = ANY($1::text[]))
	`
	if err := r.db.GetContext(ctx, &count, query, scopeArg(outletCodes)); err != nil {
		return 0, fmt.Errorf("failed to count pending deactivations: %w", err)
	}
	return count, nil
}
