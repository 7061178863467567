package services

import (
	"context"
	"errors"

	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/google/uuid"
)

// ErrForbidden is returned when the actor may not touch the record
var ErrForbidden = errors.New("not allowed for this account")

// Actor is the signed-in staff user a request runs as
type Actor struct {
	UserID      uuid.UUID
	Email       string
	Role        models.StaffRole
	OutletCodes []string
}

// IsAdmin reports whether the actor sees every outlet
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleSuperAdmin
}

// ScopeResolver works out which outlets an actor can see.
// Store managers see the outlets on their account. Field coaches additionally
// see every outlet that names them as coach.
type ScopeResolver struct {
	outletRepo *database.OutletRepository
}

// NewScopeResolver creates a scope resolver
func NewScopeResolver(outletRepo *database.OutletRepository) *ScopeResolver {
	return &ScopeResolver{outletRepo: outletRepo}
}

// OutletScope returns nil for admins (no restriction) and the visible outlet codes otherwise.
// A scoped actor with no outlets gets an empty, non-nil slice that matches nothing.
func (r *ScopeResolver) OutletScope(ctx context.Context, actor Actor) ([]string, error) {
	if actor.IsAdmin() {
		return nil, nil
	}

	codes := models.StringSet(actor.OutletCodes)
	if actor.Role == models.RoleFieldCoach {
		assigned, err := r.outletRepo.CodesForCoach(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		codes = append(codes, assigned...)
	}
	return []string(codes.Normalize()), nil
}

// CanSee reports whether an outlet code is inside scope
func CanSee(scope []string, outletCode *string) bool {
	if scope == nil {
		return true
	}
	if outletCode == nil {
		return false
	}
	return models.StringSet(scope).Contains(*outletCode)
}
