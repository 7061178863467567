package services

import (
	"context"
	"errors"
	"strings"

	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/pkg/validator"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	// ErrOutletNotFound is returned for unknown or out-of-scope outlets
	ErrOutletNotFound = errors.New("outlet not found")

	// ErrOutletExists is returned when an outlet code is taken
	ErrOutletExists = errors.New("outlet code already exists")

	// ErrRoleNotFound is returned for unknown roles
	ErrRoleNotFound = errors.New("role not found")

	// ErrRoleExists is returned when a role title is taken
	ErrRoleExists = errors.New("role title already exists")

	// ErrRoleInUse is returned when deleting a role that employees still hold
	ErrRoleInUse = errors.New("role is assigned to employees")
)

// isUniqueViolation reports whether err is a Postgres unique constraint failure
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// OrganizationService administers outlets and job roles
type OrganizationService struct {
	outlets *database.OutletRepository
	roles   *database.RoleRepository
	users   *database.UserRepository
	scope   *ScopeResolver
}

// NewOrganizationService creates a new organization service
func NewOrganizationService(outlets *database.OutletRepository, roles *database.RoleRepository, users *database.UserRepository, scope *ScopeResolver) *OrganizationService {
	return &OrganizationService{
		outlets: outlets,
		roles:   roles,
		users:   users,
		scope:   scope,
	}
}

// CreateOutlet registers an outlet
func (s *OrganizationService) CreateOutlet(ctx context.Context, req models.CreateOutletRequest) (*models.Outlet, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return nil, validator.FieldErrors{"code": "This field is required"}
	}
	if req.Pincode != "" && !validator.IsValidPincode(req.Pincode) {
		return nil, validator.FieldErrors{"pincode": "Pincode must be 6 digits"}
	}
	if err := s.checkCoach(ctx, req.FieldCoachID); err != nil {
		return nil, err
	}

	outlet := &models.Outlet{
		Code:         code,
		Name:         strings.TrimSpace(req.Name),
		AddressLine:  req.AddressLine,
		City:         req.City,
		State:        req.State,
		Pincode:      req.Pincode,
		FieldCoachID: req.FieldCoachID,
		IsActive:     true,
	}
	if err := s.outlets.Create(ctx, outlet); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrOutletExists
		}
		return nil, err
	}
	return outlet, nil
}

// GetOutlet returns an outlet visible to the actor
func (s *OrganizationService) GetOutlet(ctx context.Context, actor Actor, code string) (*models.Outlet, error) {
	scope, err := s.scope.OutletScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !CanSee(scope, &code) {
		return nil, ErrOutletNotFound
	}

	outlet, err := s.outlets.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if outlet == nil {
		return nil, ErrOutletNotFound
	}
	return outlet, nil
}

// ListOutlets returns the outlets visible to the actor
func (s *OrganizationService) ListOutlets(ctx context.Context, actor Actor) ([]models.Outlet, error) {
	scope, err := s.scope.OutletScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.outlets.List(ctx, scope)
}

// UpdateOutlet applies the non-nil fields of req
func (s *OrganizationService) UpdateOutlet(ctx context.Context, code string, req models.UpdateOutletRequest) (*models.Outlet, error) {
	outlet, err := s.outlets.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if outlet == nil {
		return nil, ErrOutletNotFound
	}

	if req.Name != nil {
		outlet.Name = strings.TrimSpace(*req.Name)
	}
	if req.AddressLine != nil {
		outlet.AddressLine = *req.AddressLine
	}
	if req.City != nil {
		outlet.City = *req.City
	}
	if req.State != nil {
		outlet.State = *req.State
	}
	if req.Pincode != nil {
		if *req.Pincode != "" && !validator.IsValidPincode(*req.Pincode) {
			return nil, validator.FieldErrors{"pincode": "Pincode must be 6 digits"}
		}
		outlet.Pincode = *req.Pincode
	}
	if req.FieldCoachID != nil {
		if err := s.checkCoach(ctx, req.FieldCoachID); err != nil {
			return nil, err
		}
		outlet.FieldCoachID = req.FieldCoachID
	}
	if req.IsActive != nil {
		outlet.IsActive = *req.IsActive
	}

	if err := s.outlets.Update(ctx, outlet); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrOutletNotFound
		}
		return nil, err
	}
	return outlet, nil
}

// DeleteOutlet removes an outlet
func (s *OrganizationService) DeleteOutlet(ctx context.Context, code string) error {
	if err := s.outlets.Delete(ctx, code); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrOutletNotFound
		}
		return err
	}
	return nil
}

// checkCoach makes sure an assigned coach is an active field coach account
func (s *OrganizationService) checkCoach(ctx context.Context, coachID *uuid.UUID) error {
	if coachID == nil {
		return nil
	}
	user, err := s.users.GetUserByID(ctx, *coachID)
	if err != nil {
		return err
	}
	if user == nil || user.Role != models.RoleFieldCoach || !user.IsActive {
		return validator.FieldErrors{"field_coach_id": "Select an active field coach"}
	}
	return nil
}

// CreateRole registers a job role
func (s *OrganizationService) CreateRole(ctx context.Context, req models.CreateRoleRequest) (*models.Role, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, validator.FieldErrors{"title": "This field is required"}
	}

	role := &models.Role{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Permissions: models.StringSet(req.Permissions).Normalize(),
	}
	if err := s.roles.Create(ctx, role); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRoleExists
		}
		return nil, err
	}
	return role, nil
}

// GetRole returns a role with its user count
func (s *OrganizationService) GetRole(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, ErrRoleNotFound
	}
	return role, nil
}

// ListRoles returns every role
func (s *OrganizationService) ListRoles(ctx context.Context) ([]models.Role, error) {
	return s.roles.List(ctx)
}

// UpdateRole applies the non-nil fields of req. Titles are fixed because applications reference them.
func (s *OrganizationService) UpdateRole(ctx context.Context, id uuid.UUID, req models.UpdateRoleRequest) (*models.Role, error) {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Description != nil {
		role.Description = strings.TrimSpace(*req.Description)
	}
	if req.Permissions != nil {
		role.Permissions = models.StringSet(req.Permissions).Normalize()
	}

	if err := s.roles.Update(ctx, role); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return role, nil
}

// DeleteRole removes a role nobody holds
func (s *OrganizationService) DeleteRole(ctx context.Context, id uuid.UUID) error {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.UserCount > 0 {
		return ErrRoleInUse
	}

	if err := s.roles.Delete(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrRoleNotFound
		}
		return err
	}
	return nil
}
