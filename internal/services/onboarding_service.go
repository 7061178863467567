package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/crewhire/onboarding-backend/internal/metrics"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/pkg/jwt"
	"github.com/crewhire/onboarding-backend/pkg/mailer"
	"github.com/crewhire/onboarding-backend/pkg/sms"
	"github.com/crewhire/onboarding-backend/pkg/validator"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrApplicationNotFound is returned when the application does not exist or is outside the caller's scope
	ErrApplicationNotFound = errors.New("application not found")

	// ErrNotEditable is returned when a draft save targets an application that was already submitted
	ErrNotEditable = errors.New("application is no longer editable")

	// ErrPhoneMismatch is returned when a candidate touches another phone's application
	ErrPhoneMismatch = errors.New("phone does not match the verified phone")

	// ErrInvalidPayload is returned when a request body cannot be decoded
	ErrInvalidPayload = errors.New("invalid request payload")
)

// OnboardingService owns candidate drafts, OTP verification and submission
type OnboardingService struct {
	apps      *database.ApplicationRepository
	otp       *OTPService
	rateLimit *RateLimitService
	audit     *AuditService
	sms       sms.SMSGateway
	mail      mailer.Mailer
	jwt       *jwt.Service
	scope     *ScopeResolver
	phones    *validator.PhoneValidator
	devMode   bool
	logger    *logrus.Logger
	now       func() time.Time
}

// OnboardingDeps groups the collaborators of OnboardingService
type OnboardingDeps struct {
	Applications *database.ApplicationRepository
	OTP          *OTPService
	RateLimit    *RateLimitService
	Audit        *AuditService
	SMS          sms.SMSGateway
	Mailer       mailer.Mailer
	JWT          *jwt.Service
	Scope        *ScopeResolver
	DevMode      bool // return OTPs in responses
	Logger       *logrus.Logger
}

// NewOnboardingService creates a new onboarding service
func NewOnboardingService(deps OnboardingDeps) *OnboardingService {
	return &OnboardingService{
		apps:      deps.Applications,
		otp:       deps.OTP,
		rateLimit: deps.RateLimit,
		audit:     deps.Audit,
		sms:       deps.SMS,
		mail:      deps.Mailer,
		jwt:       deps.JWT,
		scope:     deps.Scope,
		phones:    validator.NewPhoneValidator(),
		devMode:   deps.DevMode,
		logger:    deps.Logger,
		now:       time.Now,
	}
}

// RequestContext carries caller metadata used for rate limiting and auditing
type RequestContext struct {
	IPAddress string
	UserAgent string
}

// SendPhoneOTP issues an OTP to a candidate's phone
func (s *OnboardingService) SendPhoneOTP(ctx context.Context, phone string, rc RequestContext) (*models.SendOTPResponse, error) {
	formatted, err := s.phones.Validate(phone)
	if err != nil {
		return nil, validator.FieldErrors{"phone": err.Error()}
	}

	if err := s.rateLimit.CheckOTPRateLimit(ctx, formatted, rc.IPAddress); err != nil {
		var rlErr *RateLimitError
		if errors.As(err, &rlErr) {
			s.audit.LogRateLimitViolation(ctx, formatted, rc.IPAddress, rc.UserAgent, rlErr.Type, rlErr.RetryAfter)
		}
		return nil, err
	}

	code, err := s.otp.GenerateOTP(ctx, formatted, models.OTPChannelSMS, rc.IPAddress, rc.UserAgent)
	if err != nil {
		s.audit.LogOTPRequest(ctx, formatted, string(models.OTPChannelSMS), rc.IPAddress, rc.UserAgent, false, err.Error())
		return nil, err
	}

	if err := s.rateLimit.RecordOTPRequest(ctx, formatted, rc.IPAddress); err != nil {
		s.logger.WithError(err).Warn("Failed to record OTP request for rate limiting")
	}

	requestID, err := s.sms.SendOTP(ctx, formatted, code)
	if err != nil {
		s.logger.WithError(err).WithField("gateway", s.sms.GetName()).Error("Failed to send OTP SMS")
		s.audit.LogOTPRequest(ctx, formatted, string(models.OTPChannelSMS), rc.IPAddress, rc.UserAgent, false, err.Error())
		return nil, fmt.Errorf("failed to send OTP: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"phone":      formatted,
		"request_id": requestID,
		"gateway":    s.sms.GetName(),
	}).Info("OTP SMS sent")

	metrics.OTPSent.WithLabelValues(string(models.OTPChannelSMS)).Inc()
	s.audit.LogOTPRequest(ctx, formatted, string(models.OTPChannelSMS), rc.IPAddress, rc.UserAgent, true, "")

	resp := &models.SendOTPResponse{
		Message:   "OTP sent successfully",
		ExpiresIn: int(s.otp.Expiry().Seconds()),
	}
	if s.devMode {
		resp.OTP = code
	}
	return resp, nil
}

// VerifyPhoneOTP checks the OTP and issues a candidate token.
// The existing draft, if any, is marked phone verified and returned.
func (s *OnboardingService) VerifyPhoneOTP(ctx context.Context, phone, code string, rc RequestContext) (*models.VerifyOTPResponse, error) {
	formatted, err := s.phones.Validate(phone)
	if err != nil {
		return nil, validator.FieldErrors{"phone": err.Error()}
	}

	if _, err := s.otp.ValidateOTP(ctx, formatted, models.OTPChannelSMS, code); err != nil {
		s.audit.LogOTPVerification(ctx, formatted, string(models.OTPChannelSMS), false, rc.IPAddress, rc.UserAgent, err.Error())
		return nil, err
	}
	s.audit.LogOTPVerification(ctx, formatted, string(models.OTPChannelSMS), true, rc.IPAddress, rc.UserAgent, "")

	if err := s.apps.MarkPhoneVerified(ctx, formatted); err != nil {
		return nil, err
	}

	draft, err := s.apps.GetByPhone(ctx, formatted)
	if err != nil {
		return nil, err
	}

	token, err := s.jwt.GenerateCandidateToken(formatted)
	if err != nil {
		return nil, fmt.Errorf("failed to generate candidate token: %w", err)
	}

	return &models.VerifyOTPResponse{
		Verified:  true,
		Token:     token,
		ExpiresIn: int64(s.jwt.CandidateTokenExpiry().Seconds()),
		Draft:     draft,
	}, nil
}

// SendEmailOTP emails an OTP to the address the candidate entered
func (s *OnboardingService) SendEmailOTP(ctx context.Context, phone, email string, rc RequestContext) (*models.SendOTPResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := s.rateLimit.CheckOTPRateLimit(ctx, email, rc.IPAddress); err != nil {
		var rlErr *RateLimitError
		if errors.As(err, &rlErr) {
			s.audit.LogRateLimitViolation(ctx, email, rc.IPAddress, rc.UserAgent, rlErr.Type, rlErr.RetryAfter)
		}
		return nil, err
	}

	code, err := s.otp.GenerateOTP(ctx, email, models.OTPChannelEmail, rc.IPAddress, rc.UserAgent)
	if err != nil {
		return nil, err
	}

	if err := s.rateLimit.RecordOTPRequest(ctx, email, rc.IPAddress); err != nil {
		s.logger.WithError(err).Warn("Failed to record OTP request for rate limiting")
	}

	minutes := int(s.otp.Expiry().Minutes())
	msg := mailer.Message{
		To:       email,
		Subject:  "Your verification code",
		TextBody: fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, minutes),
		HTMLBody: fmt.Sprintf("<p>Your verification code is <strong>%s</strong>.</p><p>It expires in %d minutes.</p>", code, minutes),
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		s.audit.LogOTPRequest(ctx, email, string(models.OTPChannelEmail), rc.IPAddress, rc.UserAgent, false, err.Error())
		return nil, fmt.Errorf("failed to send OTP email: %w", err)
	}

	metrics.OTPSent.WithLabelValues(string(models.OTPChannelEmail)).Inc()
	s.audit.LogOTPRequest(ctx, email, string(models.OTPChannelEmail), rc.IPAddress, rc.UserAgent, true, "")
	s.logger.WithField("phone", phone).Debug("Email OTP sent")

	resp := &models.SendOTPResponse{
		Message:   "OTP sent successfully",
		ExpiresIn: int(s.otp.Expiry().Seconds()),
	}
	if s.devMode {
		resp.OTP = code
	}
	return resp, nil
}

// VerifyEmailOTP checks an email OTP and marks the candidate's draft email verified
func (s *OnboardingService) VerifyEmailOTP(ctx context.Context, phone, email, code string, rc RequestContext) error {
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := s.otp.ValidateOTP(ctx, email, models.OTPChannelEmail, code); err != nil {
		s.audit.LogOTPVerification(ctx, email, string(models.OTPChannelEmail), false, rc.IPAddress, rc.UserAgent, err.Error())
		return err
	}
	s.audit.LogOTPVerification(ctx, email, string(models.OTPChannelEmail), true, rc.IPAddress, rc.UserAgent, "")

	return s.apps.MarkEmailVerified(ctx, phone)
}

// GetDraft returns the candidate's draft, or ErrApplicationNotFound
func (s *OnboardingService) GetDraft(ctx context.Context, phone string) (*models.Application, error) {
	app, err := s.apps.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrApplicationNotFound
	}
	return app, nil
}

// DecodeDraft checks the raw payload shape and decodes it
func (s *OnboardingService) DecodeDraft(raw []byte) (*models.SaveDraftRequest, error) {
	fieldErrs, err := CheckDraftShape(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !fieldErrs.Valid() {
		return nil, fieldErrs
	}

	var req models.SaveDraftRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &req, nil
}

// SaveDraft persists the wizard form for a verified phone.
// req.CurrentStep is the step the candidate lands on, so steps before it must validate.
// Verification flags always come from the stored record.
func (s *OnboardingService) SaveDraft(ctx context.Context, phone string, req *models.SaveDraftRequest) (*models.Application, error) {
	reqPhone, err := s.phones.Validate(req.Phone)
	if err != nil || reqPhone != phone {
		return nil, ErrPhoneMismatch
	}

	if req.CurrentStep < models.FirstStep || req.CurrentStep > models.LastStep {
		return nil, validator.FieldErrors{"current_step": fmt.Sprintf("step must be between %d and %d", models.FirstStep, models.LastStep)}
	}

	existing, err := s.apps.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if existing != nil && !existing.IsEditable() {
		return nil, ErrNotEditable
	}

	// A candidate token is only issued after the phone OTP succeeds.
	var flags models.VerificationFlags
	if existing != nil {
		flags = existing.VerificationFlags
	}
	flags.PhoneVerified = true

	data := req.Data
	data.Phone = phone
	data.PANNumber = validator.NormalizePAN(data.PANNumber)
	data.AadhaarNumber = validator.NormalizeAadhaar(data.AadhaarNumber)
	// A PAN that differs from the verified one must be verified again.
	if existing != nil && flags.PANVerified && data.PANNumber != existing.Data.PANNumber {
		flags.PANVerified = false
	}

	if errs := validator.ValidateThrough(req.CurrentStep-1, &data, flags, s.now()); !errs.Valid() {
		return nil, errs
	}

	var outletCode *string
	if data.OutletCode != "" {
		code := data.OutletCode
		outletCode = &code
	}
	var fieldCoachID *uuid.UUID
	if data.FieldCoachID != "" {
		id, err := uuid.Parse(data.FieldCoachID)
		if err != nil {
			return nil, validator.FieldErrors{"field_coach_id": "Select a valid field coach"}
		}
		fieldCoachID = &id
	}

	app, err := s.apps.UpsertDraft(ctx, phone, req.CurrentStep, data, outletCode, fieldCoachID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrNotEditable
	}

	if !app.PhoneVerified {
		if err := s.apps.MarkPhoneVerified(ctx, phone); err != nil {
			return nil, err
		}
		app.PhoneVerified = true
	}
	return app, nil
}

// Submit moves a complete, Aadhaar-verified draft to submitted
func (s *OnboardingService) Submit(ctx context.Context, id uuid.UUID, phone string, rc RequestContext) (*models.Application, error) {
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app == nil || app.Phone != phone {
		return nil, ErrApplicationNotFound
	}

	if err := models.CheckTransition(app.Status, models.StatusSubmitted); err != nil {
		return nil, err
	}

	if errs := validator.ValidateAll(&app.Data, app.VerificationFlags, s.now()); !errs.Valid() {
		return nil, errs
	}

	ok, err := s.apps.TransitionStatus(ctx, nil, id, models.StatusDraft, models.StatusSubmitted, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: application changed while submitting", models.ErrInvalidTransition)
	}

	metrics.Submissions.Inc()
	s.audit.LogApplicationEvent(ctx, nil, AuditSubmit, id, rc.IPAddress, rc.UserAgent, map[string]interface{}{
		"phone":       phone,
		"outlet_code": app.Data.OutletCode,
	})

	now := s.now()
	app.Status = models.StatusSubmitted
	app.SubmittedAt = &now
	return app, nil
}

// List returns applications visible to the actor
func (s *OnboardingService) List(ctx context.Context, actor Actor, filter models.ApplicationFilter) (*models.ApplicationListResponse, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, validator.FieldErrors{"status": "Unknown status"}
	}

	scope, err := s.scope.OutletScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	filter.OutletCodes = scope

	items, total, err := s.apps.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return &models.ApplicationListResponse{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: filter.Offset,
	}, nil
}

// Get returns one application if the actor can see it
func (s *OnboardingService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Application, error) {
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
	return app, nil
}

// Activate marks an approved hire as an active employee
func (s *OnboardingService) Activate(ctx context.Context, actor Actor, id uuid.UUID, rc RequestContext) (*models.Application, error) {
	app, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if err := models.CheckTransition(app.Status, models.StatusActive); err != nil {
		return nil, err
	}

	ok, err := s.apps.TransitionStatus(ctx, nil, id, app.Status, models.StatusActive, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: application changed while activating", models.ErrInvalidTransition)
	}

	actorID := actor.UserID
	s.audit.LogApplicationEvent(ctx, &actorID, AuditActivation, id, rc.IPAddress, rc.UserAgent, map[string]interface{}{
		"from": app.Status,
		"to":   models.StatusActive,
	})

	app.Status = models.StatusActive
	return app, nil
}
