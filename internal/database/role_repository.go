package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/google/uuid"
)

// user_count counts employed applications holding the role title
const roleSelect = `
	SELECT r.id, r.title, r.description, r.permissions, r.created_at, r.updated_at,
	       (SELECT COUNT(*) FROM onboarding_applications a
	        WHERE a.data->>'role' = r.title AND a.status = ANY($1)) AS user_count
	FROM roles r`

// RoleRepository handles job role database operations
type RoleRepository struct {
	db DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Create inserts a new role
func (r *RoleRepository) Create(ctx context.Context, role *models.Role) error {
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}

	query := `
		INSERT INTO roles (id, title, description, permissions)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, role.ID, role.Title, role.Description, role.Permissions.Normalize()).
		Scan(&role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

// GetByID returns the role with its user count, or nil
func (r *RoleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	var role models.Role
	err := r.db.GetContext(ctx, &role, roleSelect+` WHERE r.id = $2`, employedStatuses(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return &role, nil
}

// List returns all roles ordered by title
func (r *RoleRepository) List(ctx context.Context) ([]models.Role, error) {
	roles := []models.Role{}
	if err := r.db.SelectContext(ctx, &roles, roleSelect+` ORDER BY r.title`, employedStatuses()); err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

// Update writes the mutable role fields
func (r *RoleRepository) Update(ctx context.Context, role *models.Role) error {
	query := `
		UPDATE roles SET title = $2, description = $3, permissions = $4, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, role.ID, role.Title, role.Description, role.Permissions.Normalize())
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return requireOneRow(result, "role")
}

// Delete removes a role
func (r *RoleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	return requireOneRow(result, "role")
}
