package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/internal/utils"
	"github.com/crewhire/onboarding-backend/pkg/mailer"
	"github.com/crewhire/onboarding-backend/pkg/validator"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// DefaultApprovalTokenTTL is how long an emailed approval link stays valid
const DefaultApprovalTokenTTL = 72 * time.Hour

var (
	// ErrInvalidApprovalToken covers unknown tokens and links whose expiry was tampered with
	ErrInvalidApprovalToken = errors.New("invalid approval link")

	// ErrApprovalTokenExpired is returned for links past their expiry
	ErrApprovalTokenExpired = errors.New("approval link has expired")

	// ErrApprovalTokenUsed is returned when a link was already used
	ErrApprovalTokenUsed = errors.New("approval link has already been used")

	// ErrNoApprover is returned when the application's outlet has no active field coach
	ErrNoApprover = errors.New("no field coach assigned to approve this application")
)

// ApprovalService runs the email-link approval of submitted applications
type ApprovalService struct {
	db        database.DB
	apps      *database.ApplicationRepository
	tokens    *database.ApprovalTokenRepository
	outlets   *database.OutletRepository
	users     *database.UserRepository
	scope     *ScopeResolver
	mail      mailer.Mailer
	audit     *AuditService
	publicURL string
	ttl       time.Duration
	logger    *logrus.Logger
	now       func() time.Time
}

// ApprovalDeps groups the collaborators of ApprovalService
type ApprovalDeps struct {
	DB           database.DB
	Applications *database.ApplicationRepository
	Tokens       *database.ApprovalTokenRepository
	Outlets      *database.OutletRepository
	Users        *database.UserRepository
	Scope        *ScopeResolver
	Mailer       mailer.Mailer
	Audit        *AuditService
	PublicURL    string
	TokenTTL     time.Duration
	Logger       *logrus.Logger
}

// NewApprovalService creates a new approval service
func NewApprovalService(deps ApprovalDeps) *ApprovalService {
	ttl := deps.TokenTTL
	if ttl <= 0 {
		ttl = DefaultApprovalTokenTTL
	}
	return &ApprovalService{
		db:        deps.DB,
		apps:      deps.Applications,
		tokens:    deps.Tokens,
		outlets:   deps.Outlets,
		users:     deps.Users,
		scope:     deps.Scope,
		mail:      deps.Mailer,
		audit:     deps.Audit,
		publicURL: strings.TrimRight(deps.PublicURL, "/"),
		ttl:       ttl,
		logger:    deps.Logger,
		now:       time.Now,
	}
}

// RequestApproval moves a submitted application to pending_approval and emails the
// outlet's field coach an approve/reject link. Calling it again while pending re-issues the link.
func (s *ApprovalService) RequestApproval(ctx context.Context, actor Actor, id uuid.UUID, rc RequestContext) (*models.RequestApprovalResponse, error) {
	app, err := s.apps.GetByID(ctx, id)
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

	if app.Status != models.StatusPendingApproval {
		if err := models.CheckTransition(app.Status, models.StatusPendingApproval); err != nil {
			return nil, err
		}
	}

	approver, err := s.approverFor(ctx, app)
	if err != nil {
		return nil, err
	}

	if app.Status == models.StatusSubmitted {
		ok, err := s.apps.TransitionStatus(ctx, nil, id, models.StatusSubmitted, models.StatusPendingApproval, nil)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: application changed while requesting approval", models.ErrInvalidTransition)
		}
	}

	if err := s.tokens.InvalidateForApplication(ctx, id); err != nil {
		return nil, err
	}

	token, err := utils.GenerateSecret(32)
	if err != nil {
		return nil, err
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	if _, err := s.tokens.Create(ctx, id, token, expiresAt); err != nil {
		return nil, err
	}

	if err := s.mail.Send(ctx, s.approvalEmail(approver, app, token, expiresAt)); err != nil {
		return nil, fmt.Errorf("failed to send approval email: %w", err)
	}

	actorID := actor.UserID
	s.audit.LogApplicationEvent(ctx, &actorID, AuditApprovalRequested, id, rc.IPAddress, rc.UserAgent, map[string]interface{}{
		"approver": approver.Email,
	})

	return &models.RequestApprovalResponse{
		Recipient: approver.Email,
		ExpiresAt: expiresAt,
	}, nil
}

// CheckToken validates an approval link without using it
func (s *ApprovalService) CheckToken(ctx context.Context, id uuid.UUID, token string, expiry int64) (*models.CheckTokenResponse, error) {
	record, err := s.validToken(ctx, id, token, expiry)
	if err != nil {
		return nil, err
	}

	app, err := s.pendingApplication(ctx, id)
	if err != nil {
		return nil, err
	}

	return &models.CheckTokenResponse{
		Valid:       true,
		ExpiresAt:   record.ExpiresAt,
		Application: summarize(app),
	}, nil
}

// Decide approves or rejects the application behind a link. The link is consumed.
func (s *ApprovalService) Decide(ctx context.Context, id uuid.UUID, token string, expiry int64, approve bool, reason string, rc RequestContext) (*models.DecisionResponse, error) {
	record, err := s.validToken(ctx, id, token, expiry)
	if err != nil {
		return nil, err
	}

	if _, err := s.pendingApplication(ctx, id); err != nil {
		return nil, err
	}

	to := models.StatusApproved
	var reasonPtr *string
	if !approve {
		to = models.StatusRejected
		if r := strings.TrimSpace(reason); r != "" {
			reasonPtr = &r
		}
	}

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		used, err := s.tokens.MarkUsed(ctx, tx, record.ID)
		if err != nil {
			return err
		}
		if !used {
			return ErrApprovalTokenUsed
		}

		ok, err := s.apps.TransitionStatus(ctx, tx, id, models.StatusPendingApproval, to, reasonPtr)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: application is no longer pending approval", models.ErrInvalidTransition)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogApplicationEvent(ctx, nil, AuditApprovalDecision, id, rc.IPAddress, rc.UserAgent, map[string]interface{}{
		"decision": to,
		"reason":   reason,
	})

	return &models.DecisionResponse{ApplicationID: id, Status: to}, nil
}

// validToken checks that token exists for the application, is unused, unexpired and that the
// expiry carried in the link equals the stored one
func (s *ApprovalService) validToken(ctx context.Context, id uuid.UUID, token string, expiry int64) (*models.ApprovalToken, error) {
	if token == "" {
		return nil, ErrInvalidApprovalToken
	}

	record, err := s.tokens.Get(ctx, id, token)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrInvalidApprovalToken
	}
	if record.UsedAt != nil {
		return nil, ErrApprovalTokenUsed
	}
	if !s.now().Before(record.ExpiresAt) {
		return nil, ErrApprovalTokenExpired
	}
	if record.ExpiresAt.Unix() != expiry {
		return nil, ErrInvalidApprovalToken
	}
	return record, nil
}

func (s *ApprovalService) pendingApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrApplicationNotFound
	}
	if app.Status != models.StatusPendingApproval {
		return nil, fmt.Errorf("%w: application is %s", models.ErrInvalidTransition, app.Status)
	}
	return app, nil
}

// approverFor returns the active field coach of the application's outlet,
// falling back to the coach the candidate selected
func (s *ApprovalService) approverFor(ctx context.Context, app *models.Application) (*models.User, error) {
	var coachID *uuid.UUID
	if app.OutletCode != nil {
		outlet, err := s.outlets.GetByCode(ctx, *app.OutletCode)
		if err != nil {
			return nil, err
		}
		if outlet != nil {
			coachID = outlet.FieldCoachID
		}
	}
	if coachID == nil {
		coachID = app.FieldCoachID
	}
	if coachID == nil {
		return nil, ErrNoApprover
	}

	coach, err := s.users.GetUserByID(ctx, *coachID)
	if err != nil {
		return nil, err
	}
	if coach == nil || !coach.IsActive {
		return nil, ErrNoApprover
	}
	return coach, nil
}

func (s *ApprovalService) approvalEmail(approver *models.User, app *models.Application, token string, expiresAt time.Time) mailer.Message {
	link := func(action string) string {
		return fmt.Sprintf("%s/api/v1/onboarding/%s/%s?token=%s&expiry=%d", s.publicURL, app.ID, action, token, expiresAt.Unix())
	}
	approve := link("approve-with-token")
	reject := link("reject-with-token")

	name := app.Data.FullName
	if name == "" {
		name = app.Phone
	}
	outlet := app.Data.OutletCode
	phone, err := validator.NewPhoneValidator().Format(app.Phone)
	if err != nil {
		phone = app.Phone
	}

	return mailer.Message{
		To:      approver.Email,
		Subject: fmt.Sprintf("Approval needed: %s (%s)", name, outlet),
		TextBody: fmt.Sprintf(
			"Hi %s,\n\n%s (%s) applied for %s at outlet %s.\n\nApprove: %s\nReject: %s\n\nThese links expire on %s.\n",
			approver.FullName, name, phone, app.Data.Role, outlet, approve, reject, expiresAt.Format(time.RFC1123),
		),
		HTMLBody: fmt.Sprintf(
			`<p>Hi %s,</p><p>%s (%s) applied for %s at outlet %s.</p><p><a href="%s">Approve</a> | <a href="%s">Reject</a></p><p>These links expire on %s.</p>`,
			approver.FullName, name, phone, app.Data.Role, outlet, approve, reject, expiresAt.Format(time.RFC1123),
		),
	}
}

func summarize(app *models.Application) models.ApplicationSummary {
	return models.ApplicationSummary{
		ID:          app.ID,
		Phone:       app.Phone,
		FullName:    app.Data.FullName,
		Role:        app.Data.Role,
		OutletCode:  app.OutletCode,
		CurrentStep: app.CurrentStep,
		Status:      app.Status,
		SubmittedAt: app.SubmittedAt,
		UpdatedAt:   app.UpdatedAt,
	}
}
