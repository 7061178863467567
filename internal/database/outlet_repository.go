package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// employee_count counts applications employed at the outlet
const outletSelect = `
	SELECT o.id, o.code, o.name, o.address_line, o.city, o.state, o.pincode,
	       o.field_coach_id, o.is_active, o.created_at, o.updated_at,
	       (SELECT COUNT(*) FROM onboarding_applications a
	        WHERE a.outlet_code = o.code AND a.status = ANY($1)) AS employee_count
	FROM outlets o`

// OutletRepository handles outlet database operations
type OutletRepository struct {
	db DB
}

// NewOutletRepository creates a new outlet repository
func NewOutletRepository(db DB) *OutletRepository {
	return &OutletRepository{db: db}
}

// Create inserts a new outlet
func (r *OutletRepository) Create(ctx context.Context, outlet *models.Outlet) error {
	if outlet.ID == uuid.Nil {
		outlet.ID = uuid.New()
	}

	query := `
		INSERT INTO outlets (id, code, name, address_line, city, state, pincode, field_coach_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		outlet.ID, outlet.Code, outlet.Name, outlet.AddressLine, outlet.City,
		outlet.State, outlet.Pincode, outlet.FieldCoachID, outlet.IsActive,
	).Scan(&outlet.CreatedAt, &outlet.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create outlet: %w", err)
	}
	return nil
}

// GetByCode returns the outlet with the given code, or nil
func (r *OutletRepository) GetByCode(ctx context.Context, code string) (*models.Outlet, error) {
	var outlet models.Outlet
	err := r.db.GetContext(ctx, &outlet, outletSelect+` WHERE o.code = $2`, employedStatuses(), code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get outlet: %w", err)
	}
	return &outlet, nil
}

// List returns outlets, restricted to codes when codes is non-nil
func (r *OutletRepository) List(ctx context.Context, codes []string) ([]models.Outlet, error) {
	outlets := []models.Outlet{}
	query := outletSelect + ` WHERE $2::text[] IS NULL OR o.code = ANY($2::text[]) ORDER BY o.code`
	if err := r.db.SelectContext(ctx, &outlets, query, employedStatuses(), scopeArg(codes)); err != nil {
		return nil, fmt.Errorf("failed to list outlets: %w", err)
	}
	return outlets, nil
}

// Update writes the mutable outlet fields
func (r *OutletRepository) Update(ctx context.Context, outlet *models.Outlet) error {
	query := `
		UPDATE outlets
		SET name = $2, address_line = $3, city = $4, state = $5, pincode = $6,
		    field_coach_id = $7, is_active = $8, updated_at = NOW()
		WHERE code = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		outlet.Code, outlet.Name, outlet.AddressLine, outlet.City, outlet.State,
		outlet.Pincode, outlet.FieldCoachID, outlet.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to update outlet: %w", err)
	}
	return requireOneRow(result, "outlet")
}

// Delete removes an outlet
func (r *OutletRepository) Delete(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM outlets WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("failed to delete outlet: %w", err)
	}
	return requireOneRow(result, "outlet")
}

// Count returns the number of active outlets in scope
func (r *OutletRepository) Count(ctx context.Context, codes []string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM outlets WHERE is_active = true AND ($1::text[] IS NULL OR code = ANY($1::text[]))`
	if err := r.db.GetContext(ctx, &count, query, scopeArg(codes)); err != nil {
		return 0, fmt.Errorf("failed to count outlets: %w", err)
	}
	return count, nil
}

// CodesForCoach returns the outlet codes a field coach is assigned to
func (r *OutletRepository) CodesForCoach(ctx context.Context, coachID uuid.UUID) ([]string, error) {
	codes := []string{}
	if err := r.db.SelectContext(ctx, &codes, `SELECT code FROM outlets WHERE field_coach_id = $1 ORDER BY code`, coachID); err != nil {
		return nil, fmt.Errorf("failed to list coach outlets: %w", err)
	}
	return codes, nil
}

func employedStatuses() interface{} {
	return pq.Array(models.EmployedStatuses)
}
