package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/crewhire/onboarding-backend/internal/metrics"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/internal/session"
	"github.com/crewhire/onboarding-backend/pkg/jwt"
	"github.com/crewhire/onboarding-backend/pkg/kyc"
	"github.com/crewhire/onboarding-backend/pkg/validator"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrVerificationFailed wraps vendor and network failures. The candidate retries manually.
	ErrVerificationFailed = errors.New("identity verification failed")

	// ErrResumeExpired is returned for unknown or expired resume tokens
	ErrResumeExpired = errors.New("resume link expired, start e-Sign again")

	// ErrResumeMismatch is returned when the callback client id does not belong to the resume token
	ErrResumeMismatch = errors.New("callback does not match the e-Sign session")
)

// PAN verification statuses
const (
	PANStatusVerified     = "verified"
	PANStatusNameMismatch = "name_mismatch"
	PANStatusDOBMismatch  = "dob_mismatch"
)

// KYCVendor is the identity verification vendor API
type KYCVendor interface {
	LookupPAN(ctx context.Context, pan string) (*kyc.PANDetails, error)
	InitializeDigiLocker(ctx context.Context, redirectURL string) (*kyc.EsignSession, error)
	DigiLockerStatus(ctx context.Context, clientID string) (*kyc.EsignStatus, error)
}

// IdentityService verifies PAN and Aadhaar through the KYC vendor
type IdentityService struct {
	vendor      KYCVendor
	apps        *database.ApplicationRepository
	sessions    *session.Store
	audit       *AuditService
	jwt         *jwt.Service
	frontendURL string
	logger      *logrus.Logger
	now         func() time.Time
}

// IdentityDeps groups the collaborators of IdentityService
type IdentityDeps struct {
	Vendor       KYCVendor
	Applications *database.ApplicationRepository
	Sessions     *session.Store
	Audit        *AuditService
	JWT          *jwt.Service
	FrontendURL  string
	Logger       *logrus.Logger
}

// NewIdentityService creates a new identity service
func NewIdentityService(deps IdentityDeps) *IdentityService {
	return &IdentityService{
		vendor:      deps.Vendor,
		apps:        deps.Applications,
		sessions:    deps.Sessions,
		audit:       deps.Audit,
		jwt:         deps.JWT,
		frontendURL: strings.TrimRight(deps.FrontendURL, "/"),
		logger:      deps.Logger,
		now:         time.Now,
	}
}

// VerifyPAN checks the PAN format and age locally, then looks the PAN up with the vendor.
// When a name is given it must match the registry name. A verified PAN is recorded on the
// candidate's application when one is named.
func (s *IdentityService) VerifyPAN(ctx context.Context, phone string, req models.VerifyPANRequest, rc RequestContext) (*models.VerifyPANResponse, error) {
	pan := validator.NormalizePAN(req.PAN)
	if !validator.IsValidPAN(pan) {
		return nil, validator.FieldErrors{"pan": "PAN must look like ABCDE1234F"}
	}
	if req.DateOfBirth != "" {
		if err := validator.CheckAge(req.DateOfBirth, s.now()); err != nil {
			return nil, validator.FieldErrors{"date_of_birth": err.Error()}
		}
	}

	var app *models.Application
	if req.ApplicationID != nil {
		var err error
		app, err = s.ownedApplication(ctx, *req.ApplicationID, phone)
		if err != nil {
			return nil, err
		}
	}

	details, err := s.vendor.LookupPAN(ctx, pan)
	if err != nil {
		if errors.Is(err, kyc.ErrPANNotFound) {
			metrics.RecordVendorCall("pan_lookup", metrics.OutcomeNotFound)
			return nil, err
		}
		metrics.RecordVendorCall("pan_lookup", metrics.OutcomeFailure)
		s.logger.WithError(err).Warn("PAN lookup failed")
		return nil, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	metrics.RecordVendorCall("pan_lookup", metrics.OutcomeSuccess)

	resp := &models.VerifyPANResponse{
		Verified: true,
		Name:     details.FullName,
		Status:   PANStatusVerified,
	}

	if strings.TrimSpace(req.Name) != "" {
		matched, similarity := validator.NamesMatch(req.Name, details.FullName)
		resp.Similarity = similarity
		if !matched {
			resp.Verified = false
			resp.Status = PANStatusNameMismatch
		}
	}
	if resp.Verified && req.DateOfBirth != "" && details.DOB != "" && details.DOB != req.DateOfBirth {
		resp.Verified = false
		resp.Status = PANStatusDOBMismatch
	}

	if resp.Verified && app != nil {
		if err := s.apps.MarkPANVerified(ctx, app.ID, pan); err != nil {
			return nil, err
		}
	}

	event := AuditEvent{
		Action:     AuditPANVerification,
		EntityType: "application",
		IPAddress:  rc.IPAddress,
		UserAgent:  rc.UserAgent,
		Details: map[string]interface{}{
			"phone":      phone,
			"status":     resp.Status,
			"similarity": resp.Similarity,
		},
	}
	if app != nil {
		event.EntityID = &app.ID
	}
	s.audit.Log(ctx, event)

	return resp, nil
}

// InitiateAadhaarEsign starts a DigiLocker session for the candidate's application.
// The transaction id is stored on the application before the vendor URL is returned, and a
// suspend session is saved so the wizard can resume after the redirect tears the page down.
func (s *IdentityService) InitiateAadhaarEsign(ctx context.Context, phone string, req models.InitiateAadhaarRequest, rc RequestContext) (*models.InitiateAadhaarResponse, error) {
	app, err := s.ownedApplication(ctx, req.ApplicationID, phone)
	if err != nil {
		return nil, err
	}

	redirectBase, err := s.redirectBase(req.RedirectURL)
	if err != nil {
		return nil, err
	}

	suspended := &session.Suspended{Phone: phone, ApplicationID: app.ID}
	token, err := s.sessions.Save(ctx, suspended)
	if err != nil {
		return nil, err
	}

	redirect, err := withQuery(redirectBase, "resume", token)
	if err != nil {
		return nil, err
	}

	esign, err := s.vendor.InitializeDigiLocker(ctx, redirect)
	if err != nil {
		metrics.RecordVendorCall("digilocker_initialize", metrics.OutcomeFailure)
		if delErr := s.sessions.Delete(ctx, token); delErr != nil {
			s.logger.WithError(delErr).Warn("Failed to drop suspend session")
		}
		return nil, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	metrics.RecordVendorCall("digilocker_initialize", metrics.OutcomeSuccess)

	if err := s.apps.SetAadhaarTransaction(ctx, app.ID, esign.ClientID); err != nil {
		return nil, err
	}

	suspended.TransactionID = esign.ClientID
	if err := s.sessions.Update(ctx, suspended); err != nil {
		return nil, err
	}

	s.audit.LogApplicationEvent(ctx, nil, AuditAadhaarInitiate, app.ID, rc.IPAddress, rc.UserAgent, map[string]interface{}{
		"transaction_id": esign.ClientID,
	})

	return &models.InitiateAadhaarResponse{
		TransactionID: esign.ClientID,
		RedirectURL:   esign.URL,
		ResumeToken:   token,
		ExpiresAt:     suspended.CreatedAt.Add(s.sessions.TTL()),
	}, nil
}

// CheckAadhaarStatus asks the vendor for the session status. It is idempotent.
// A session the vendor no longer knows yields kyc.ErrSessionNotFound.
func (s *IdentityService) CheckAadhaarStatus(ctx context.Context, phone, transactionID string, rc RequestContext) (*models.AadhaarStatusResponse, error) {
	app, err := s.apps.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if app == nil || app.Phone != phone {
		return nil, ErrApplicationNotFound
	}

	resp, err := s.confirmStatus(ctx, app, transactionID)
	if err != nil {
		return nil, err
	}

	s.audit.LogApplicationEvent(ctx, nil, AuditAadhaarStatus, app.ID, rc.IPAddress, rc.UserAgent, map[string]interface{}{
		"transaction_id": transactionID,
		"status":         resp.Status,
	})
	return resp, nil
}

// Resume rebuilds the candidate's session after the vendor redirect.
// The status in the callback URL is ignored; the vendor is asked directly.
func (s *IdentityService) Resume(ctx context.Context, resumeToken, clientID string, rc RequestContext) (*models.ResumeResponse, error) {
	suspended, err := s.sessions.Get(ctx, resumeToken)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrResumeExpired
		}
		return nil, err
	}
	if suspended.TransactionID != "" && suspended.TransactionID != clientID {
		return nil, ErrResumeMismatch
	}

	app, err := s.apps.GetByID(ctx, suspended.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrApplicationNotFound
	}
	if app.AadhaarTransactionID == nil || *app.AadhaarTransactionID != clientID {
		return nil, ErrResumeMismatch
	}

	status, err := s.confirmStatus(ctx, app, clientID)
	if err != nil {
		return nil, err
	}

	// A verified session is single use: only the resume that consumes it gets a token.
	if status.Verified {
		if _, err := s.sessions.Take(ctx, resumeToken); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return nil, ErrResumeExpired
			}
			s.logger.WithError(err).Warn("Failed to consume suspend session")
		}
	}

	token, err := s.jwt.GenerateCandidateToken(suspended.Phone)
	if err != nil {
		return nil, fmt.Errorf("failed to generate candidate token: %w", err)
	}

	s.audit.LogApplicationEvent(ctx, nil, AuditAadhaarStatus, app.ID, rc.IPAddress, rc.UserAgent, map[string]interface{}{
		"transaction_id": clientID,
		"status":         status.Status,
		"resumed":        true,
	})

	return &models.ResumeResponse{
		Application: app,
		Verified:    status.Verified,
		Status:      status.Status,
		Token:       token,
		ExpiresIn:   int64(s.jwt.CandidateTokenExpiry().Seconds()),
	}, nil
}

// confirmStatus polls the vendor and records a successful e-Sign on app
func (s *IdentityService) confirmStatus(ctx context.Context, app *models.Application, transactionID string) (*models.AadhaarStatusResponse, error) {
	status, err := s.vendor.DigiLockerStatus(ctx, transactionID)
	if err != nil {
		if errors.Is(err, kyc.ErrSessionNotFound) {
			metrics.RecordVendorCall("digilocker_status", metrics.OutcomeNotFound)
			return nil, err
		}
		metrics.RecordVendorCall("digilocker_status", metrics.OutcomeFailure)
		return nil, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	metrics.RecordVendorCall("digilocker_status", metrics.OutcomeSuccess)

	verified := status.Verified()
	if verified && !app.AadhaarVerified {
		if err := s.apps.MarkAadhaarVerified(ctx, transactionID); err != nil {
			return nil, err
		}
		app.AadhaarVerified = true
	}

	return &models.AadhaarStatusResponse{Verified: verified, Status: status.Status}, nil
}

func (s *IdentityService) ownedApplication(ctx context.Context, id uuid.UUID, phone string) (*models.Application, error) {
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app == nil || app.Phone != phone {
		return nil, ErrApplicationNotFound
	}
	if !app.IsEditable() {
		return nil, ErrNotEditable
	}
	return app, nil
}

// redirectBase picks the page the vendor sends the candidate back to.
// Only pages of the candidate app are accepted.
func (s *IdentityService) redirectBase(requested string) (string, error) {
	if requested == "" {
		if s.frontendURL == "" {
			return "", validator.FieldErrors{"redirect_url": "A redirect URL is required"}
		}
		return s.frontendURL + "/onboarding", nil
	}
	if s.frontendURL != "" && requested != s.frontendURL && !strings.HasPrefix(requested, s.frontendURL+"/") {
		return "", validator.FieldErrors{"redirect_url": "Redirect URL must point at the onboarding app"}
	}
	return requested, nil
}

func withQuery(rawURL, key, value string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", validator.FieldErrors{"redirect_url": "Enter a valid URL"}
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
