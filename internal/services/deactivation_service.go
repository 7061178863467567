package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/pkg/validator"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	// ErrDeactivationNotFound is returned for unknown or out-of-scope requests
	ErrDeactivationNotFound = errors.New("deactivation request not found")

	// ErrAlreadyResolved is returned when a request is no longer pending
	ErrAlreadyResolved = errors.New("deactivation request already resolved")
)

// DeactivationService handles deactivation and termination requests
type DeactivationService struct {
	db       database.DB
	apps     *database.ApplicationRepository
	requests *database.DeactivationRepository
	scope    *ScopeResolver
	audit    *AuditService
}

// NewDeactivationService creates a new deactivation service
func NewDeactivationService(db database.DB, apps *database.ApplicationRepository, requests *database.DeactivationRepository, scope *ScopeResolver, audit *AuditService) *DeactivationService {
	return &DeactivationService{
		db:       db,
		apps:     apps,
		requests: requests,
		scope:    scope,
		audit:    audit,
	}
}

// Create raises a request for an active employee and moves them to deactivation_pending
func (s *DeactivationService) Create(ctx context.Context, actor Actor, req models.CreateDeactivationRequest, rc RequestContext) (*models.DeactivationRequest, error) {
	if !req.Kind.Valid() {
		return nil, validator.FieldErrors{"kind": "Kind must be deactivation or termination"}
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, validator.FieldErrors{"reason": "This field is required"}
	}

	app, err := s.apps.GetByID(ctx, req.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrApplicationNotFound
	}
	scope, err := s.scope.OutletScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !CanSee(scope, app.OutletCode) {
		return nil, ErrApplicationNotFound
	}

	if err := models.CheckTransition(app.Status, models.StatusDeactivationPending); err != nil {
		return nil, err
	}

	record := &models.DeactivationRequest{
		ApplicationID: app.ID,
		RequestedBy:   actor.UserID,
		Kind:          req.Kind,
		Reason:        reason,
		OutletCode:    app.OutletCode,
	}

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		ok, err := s.apps.TransitionStatus(ctx, tx, app.ID, models.StatusActive, models.StatusDeactivationPending, nil)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: employee is no longer active", models.ErrInvalidTransition)
		}
		return s.requests.Create(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}

	actorID := actor.UserID
	s.audit.LogApplicationEvent(ctx, &actorID, AuditDeactivation, app.ID, rc.IPAddress, rc.UserAgent, map[string]interface{}{
		"request_id": record.ID,
		"kind":       record.Kind,
	})
	return record, nil
}

// List returns requests in the actor's scope, optionally filtered by status
func (s *DeactivationService) List(ctx context.Context, actor Actor, status models.RequestStatus) ([]models.DeactivationRequest, error) {
	switch status {
	case "", models.RequestPending, models.RequestApproved, models.RequestRejected:
	default:
		return nil, validator.FieldErrors{"status": "Unknown status"}
	}

	scope, err := s.scope.OutletScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.requests.List(ctx, status, scope)
}

// Resolve approves or rejects a pending request. Approval deactivates or terminates the
// employee; rejection returns them to active.
func (s *DeactivationService) Resolve(ctx context.Context, actor Actor, id uuid.UUID, req models.ResolveDeactivationRequest, rc RequestContext) (*models.DeactivationRequest, error) {
	record, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrDeactivationNotFound
	}
	scope, err := s.scope.OutletScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !CanSee(scope, record.OutletCode) {
		return nil, ErrDeactivationNotFound
	}
	if record.Status != models.RequestPending {
		return nil, ErrAlreadyResolved
	}

	requestStatus := models.RequestRejected
	appStatus := models.StatusActive
	if req.Approve {
		requestStatus = models.RequestApproved
		appStatus = record.Kind.ResultingStatus()
	}

	var note *string
	if n := strings.TrimSpace(req.Note); n != "" {
		note = &n
	}

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		ok, err := s.requests.Resolve(ctx, tx, id, requestStatus, actor.UserID, note)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyResolved
		}

		ok, err = s.apps.TransitionStatus(ctx, tx, record.ApplicationID, models.StatusDeactivationPending, appStatus, nil)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: employee is no longer pending deactivation", models.ErrInvalidTransition)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	actorID := actor.UserID
	s.audit.LogApplicationEvent(ctx, &actorID, AuditDeactivation, record.ApplicationID, rc.IPAddress, rc.UserAgent, map[string]interface{}{
		"request_id": id,
		"decision":   requestStatus,
	})

	record.Status = requestStatus
	record.ResolvedBy = &actorID
	record.ResolutionNote = note
	return record, nil
}
