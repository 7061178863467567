package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidRole is returned for a staff role outside the known set
	ErrInvalidRole = errors.New("invalid staff role")

	// ErrEmailTaken is returned when a staff email is already registered
	ErrEmailTaken = errors.New("email already registered")

	// ErrOutletScopeRequired is returned when a manager or coach has no outlets
	ErrOutletScopeRequired = errors.New("store managers and field coaches need at least one outlet")
)

// StaffService manages staff accounts (super admin only)
type StaffService struct {
	userRepo         *database.UserRepository
	refreshTokenRepo *database.RefreshTokenRepository
	bcryptCost       int
}

// NewStaffService creates a new staff service
func NewStaffService(userRepo *database.UserRepository, refreshTokenRepo *database.RefreshTokenRepository, bcryptCost int) *StaffService {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &StaffService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		bcryptCost:       bcryptCost,
	}
}

// CreateUser registers a staff account
func (s *StaffService) CreateUser(ctx context.Context, req models.CreateUserRequest, createdBy *uuid.UUID) (*models.User, error) {
	if !req.Role.Valid() {
		return nil, ErrInvalidRole
	}

	outlets := models.StringSet(req.OutletCodes).Normalize()
	if req.Role != models.RoleSuperAdmin && len(outlets) == 0 {
		return nil, ErrOutletScopeRequired
	}

	existing, err := s.userRepo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		OutletCodes:  outlets,
		IsActive:     true,
		CreatedBy:    createdBy,
	}

	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser returns a staff account
func (s *StaffService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ListUsers lists staff accounts, optionally by role
func (s *StaffService) ListUsers(ctx context.Context, role models.StaffRole) ([]models.User, error) {
	if role != "" && !role.Valid() {
		return nil, ErrInvalidRole
	}
	return s.userRepo.ListUsers(ctx, role)
}

// UpdateUser applies the non-nil fields of req. Deactivating a user revokes their sessions.
func (s *StaffService) UpdateUser(ctx context.Context, id uuid.UUID, req models.UpdateUserRequest) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Role != nil {
		if !req.Role.Valid() {
			return nil, ErrInvalidRole
		}
		user.Role = *req.Role
	}
	if req.OutletCodes != nil {
		user.OutletCodes = models.StringSet(req.OutletCodes).Normalize()
	}
	if user.Role != models.RoleSuperAdmin && len(user.OutletCodes) == 0 {
		return nil, ErrOutletScopeRequired
	}

	deactivated := false
	if req.IsActive != nil {
		deactivated = user.IsActive && !*req.IsActive
		user.IsActive = *req.IsActive
	}

	if err := s.userRepo.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if deactivated {
		if err := s.refreshTokenRepo.RevokeAllUserTokens(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// DeleteUser removes a staff account
func (s *StaffService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.userRepo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// HashPassword hashes a password with the configured cost
func (s *StaffService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
