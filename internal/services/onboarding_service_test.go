package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crewhire/onboarding-backend/internal/config"
	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/pkg/validator"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var summaryColumns = []string{
	"id", "phone", "full_name", "role", "outlet_code", "current_step", "status", "submitted_at", "updated_at",
}

type onboardingFixture struct {
	service *OnboardingService
	mock    sqlmock.Sqlmock
	sms     *fakeSMS
	mail    *fakeMailer
}

func newOnboardingFixture(t *testing.T, devMode bool) *onboardingFixture {
	db, mock := newMockDB(t)
	f := &onboardingFixture{mock: mock, sms: &fakeSMS{}, mail: &fakeMailer{}}
	f.service = NewOnboardingService(OnboardingDeps{
		Applications: database.NewApplicationRepository(db),
		OTP:          NewOTPService(db, config.OTPConfig{}),
		RateLimit:    NewRateLimitService(db, DefaultRateLimitConfig()),
		Audit:        NewAuditService(db, false),
		SMS:          f.sms,
		Mailer:       f.mail,
		JWT:          newJWT(),
		Scope:        NewScopeResolver(database.NewOutletRepository(db)),
		DevMode:      devMode,
		Logger:       quietLogger(),
	})
	f.service.now = func() time.Time { return fixedNow }
	return f
}

func (f *onboardingFixture) expectOTPIssued(recipient, channel, ip string) {
	last := time.Now().Add(-time.Minute)
	f.mock.ExpectQuery("SELECT COUNT(.+) FROM otp_rate_limits").
		WithArgs(recipient, LimitTypeRecipient, sqlmock.AnyArg()).
		WillReturnRows(countRow(0, last))
	if ip != "" {
		f.mock.ExpectQuery("SELECT COUNT(.+) FROM otp_rate_limits").
			WithArgs(ip, LimitTypeIP, sqlmock.AnyArg()).
			WillReturnRows(countRow(0, last))
	}
	f.mock.ExpectExec("UPDATE otp_verifications SET verified = true WHERE identifier").
		WithArgs(recipient, channel).
		WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec("INSERT INTO otp_verifications").
		WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectExec("INSERT INTO otp_rate_limits").
		WithArgs(recipient, LimitTypeRecipient).
		WillReturnResult(sqlmock.NewResult(1, 1))
	if ip != "" {
		f.mock.ExpectExec("INSERT INTO otp_rate_limits").
			WithArgs(ip, LimitTypeIP).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
}

func (f *onboardingFixture) expectOTPAccepted(code string) {
	f.mock.ExpectQuery("SELECT (.+) FROM otp_verifications").
		WillReturnRows(otpRow(code, time.Now().Add(time.Minute), false, 0))
	f.mock.ExpectExec("UPDATE otp_verifications SET attempts = attempts \\+ 1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE otp_verifications SET verified = true, verified_at").
		WillReturnResult(sqlmock.NewResult(0, 1))
}

var testRC = RequestContext{IPAddress: "203.0.113.9", UserAgent: "test-agent"}

func TestOnboardingService_SendPhoneOTP(t *testing.T) {
	ctx := context.Background()

	t.Run("Dev Mode Returns Code", func(t *testing.T) {
		f := newOnboardingFixture(t, true)
		f.expectOTPIssued(testPhone, "sms", testRC.IPAddress)

		resp, err := f.service.SendPhoneOTP(ctx, "+91 98765 43210", testRC)
		require.NoError(t, err)
		assert.Regexp(t, "^[0-9]{6}$", resp.OTP)
		assert.Equal(t, int(OTPExpiryDuration.Seconds()), resp.ExpiresIn)
		assert.Equal(t, resp.OTP, f.sms.code)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Gateway Delivery", func(t *testing.T) {
		f := newOnboardingFixture(t, false)
		f.expectOTPIssued(testPhone, "sms", "")

		resp, err := f.service.SendPhoneOTP(ctx, testPhone, RequestContext{})
		require.NoError(t, err)
		assert.Empty(t, resp.OTP)
		assert.Equal(t, testPhone, f.sms.phone)
		assert.Regexp(t, "^[0-9]{6}$", f.sms.code)
	})

	t.Run("Gateway Failure", func(t *testing.T) {
		f := newOnboardingFixture(t, false)
		f.sms.err = errors.New("gateway down")
		f.expectOTPIssued(testPhone, "sms", "")

		_, err := f.service.SendPhoneOTP(ctx, testPhone, RequestContext{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gateway down")
	})

	t.Run("Invalid Phone", func(t *testing.T) {
		f := newOnboardingFixture(t, true)

		_, err := f.service.SendPhoneOTP(ctx, "12345", testRC)
		var fieldErrs validator.FieldErrors
		require.True(t, errors.As(err, &fieldErrs))
		assert.Contains(t, fieldErrs, "phone")
	})

	t.Run("Rate Limited", func(t *testing.T) {
		f := newOnboardingFixture(t, true)
		f.mock.ExpectQuery("SELECT COUNT(.+) FROM otp_rate_limits").
			WillReturnRows(countRow(3, time.Now()))

		_, err := f.service.SendPhoneOTP(ctx, testPhone, testRC)
		var rlErr *RateLimitError
		require.True(t, errors.As(err, &rlErr))
		assert.Equal(t, LimitTypeRecipient, rlErr.Type)
	})
}

func TestOnboardingService_VerifyPhoneOTP(t *testing.T) {
	f := newOnboardingFixture(t, true)
	f.expectOTPAccepted("123456")
	f.mock.ExpectExec("UPDATE onboarding_applications SET phone_verified = true").
		WithArgs(testPhone).
		WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectQuery(`FROM onboarding_applications WHERE phone = \$1`).
		WithArgs(testPhone).
		WillReturnRows(sqlmock.NewRows(appColumns))

	resp, err := f.service.VerifyPhoneOTP(context.Background(), testPhone, "123456", testRC)
	require.NoError(t, err)
	assert.True(t, resp.Verified)
	assert.Nil(t, resp.Draft)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := newJWT().ValidateCandidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, testPhone, claims.Phone)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOnboardingService_VerifyPhoneOTP_WrongCode(t *testing.T) {
	f := newOnboardingFixture(t, true)
	f.mock.ExpectQuery("SELECT (.+) FROM otp_verifications").
		WillReturnRows(otpRow("123456", time.Now().Add(time.Minute), false, 0))
	f.mock.ExpectExec("UPDATE otp_verifications SET attempts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := f.service.VerifyPhoneOTP(context.Background(), testPhone, "000000", testRC)
	assert.ErrorIs(t, err, ErrOTPInvalid)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOnboardingService_EmailOTP(t *testing.T) {
	ctx := context.Background()
	f := newOnboardingFixture(t, false)

	f.expectOTPIssued("rahul@example.com", "email", "")
	_, err := f.service.SendEmailOTP(ctx, testPhone, " Rahul@Example.com ", RequestContext{})
	require.NoError(t, err)

	msg := f.mail.last()
	assert.Equal(t, "rahul@example.com", msg.To)
	assert.Regexp(t, "verification code is [0-9]{6}", msg.TextBody)

	f.expectOTPAccepted("123456")
	f.mock.ExpectExec("UPDATE onboarding_applications SET email_verified = true").
		WithArgs(testPhone).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, f.service.VerifyEmailOTP(ctx, testPhone, "rahul@example.com", "123456", RequestContext{}))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOnboardingService_SaveDraft(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates Draft", func(t *testing.T) {
		f := newOnboardingFixture(t, true)
		saved := newApp(models.StatusDraft)
		saved.CurrentStep = models.StepEducation

		f.mock.ExpectQuery(`FROM onboarding_applications WHERE phone = \$1`).
			WillReturnRows(sqlmock.NewRows(appColumns))
		f.mock.ExpectQuery("INSERT INTO onboarding_applications").
			WithArgs(sqlmock.AnyArg(), testPhone, models.StepEducation, sqlmock.AnyArg(), "BLR-001", nil).
			WillReturnRows(appRows(t, saved))

		data := completeData()
		data.PANNumber = "abcde1234f"
		app, err := f.service.SaveDraft(ctx, testPhone, &models.SaveDraftRequest{
			Phone:       testPhone,
			CurrentStep: models.StepEducation,
			Data:        data,
		})
		require.NoError(t, err)
		assert.Equal(t, saved.ID, app.ID)
		assert.Equal(t, models.StatusDraft, app.Status)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Earlier Step Invalid", func(t *testing.T) {
		f := newOnboardingFixture(t, true)
		f.mock.ExpectQuery(`FROM onboarding_applications WHERE phone = \$1`).
			WillReturnRows(sqlmock.NewRows(appColumns))

		data := completeData()
		data.FullName = ""
		data.CurrentAddress.Pincode = "12"
		_, err := f.service.SaveDraft(ctx, testPhone, &models.SaveDraftRequest{
			Phone: testPhone, CurrentStep: models.StepEducation, Data: data,
		})

		var fieldErrs validator.FieldErrors
		require.True(t, errors.As(err, &fieldErrs))
		assert.Contains(t, fieldErrs, "full_name")
		assert.Contains(t, fieldErrs, "current_address.pincode")
	})

	t.Run("Changed PAN Needs Verification", func(t *testing.T) {
		f := newOnboardingFixture(t, true)
		existing := newApp(models.StatusDraft)
		f.mock.ExpectQuery(`FROM onboarding_applications WHERE phone = \$1`).
			WillReturnRows(appRows(t, existing))

		data := completeData()
		data.PANNumber = "ZZZZZ9999Z"
		_, err := f.service.SaveDraft(ctx, testPhone, &models.SaveDraftRequest{
			Phone: testPhone, CurrentStep: models.StepIdentity, Data: data,
		})

		var fieldErrs validator.FieldErrors
		require.True(t, errors.As(err, &fieldErrs))
		assert.Contains(t, fieldErrs, "pan_verified")
	})

	t.Run("Submitted Application", func(t *testing.T) {
		f := newOnboardingFixture(t, true)
		f.mock.ExpectQuery(`FROM onboarding_applications WHERE phone = \$1`).
			WillReturnRows(appRows(t, newApp(models.StatusSubmitted)))

		_, err := f.service.SaveDraft(ctx, testPhone, &models.SaveDraftRequest{
			Phone: testPhone, CurrentStep: models.StepPersonal, Data: completeData(),
		})
		assert.ErrorIs(t, err, ErrNotEditable)
	})

	t.Run("Another Phone", func(t *testing.T) {
		f := newOnboardingFixture(t, true)

		_, err := f.service.SaveDraft(ctx, testPhone, &models.SaveDraftRequest{
			Phone: "9123456789", CurrentStep: models.StepPersonal,
		})
		assert.ErrorIs(t, err, ErrPhoneMismatch)
	})

	t.Run("Step Out Of Range", func(t *testing.T) {
		f := newOnboardingFixture(t, true)

		_, err := f.service.SaveDraft(ctx, testPhone, &models.SaveDraftRequest{
			Phone: testPhone, CurrentStep: 7,
		})
		var fieldErrs validator.FieldErrors
		require.True(t, errors.As(err, &fieldErrs))
		assert.Contains(t, fieldErrs, "current_step")
	})
}

func TestOnboardingService_DecodeDraft(t *testing.T) {
	f := newOnboardingFixture(t, true)

	req, err := f.service.DecodeDraft([]byte(`{"phone":"9876543210","current_step":2,"data":{"full_name":"Rahul"}}`))
	require.NoError(t, err)
	assert.Equal(t, 2, req.CurrentStep)
	assert.Equal(t, "Rahul", req.Data.FullName)

	_, err = f.service.DecodeDraft([]byte(`{"phone":"9876543210","current_step":"two","data":{}}`))
	var fieldErrs validator.FieldErrors
	require.True(t, errors.As(err, &fieldErrs))
	assert.Contains(t, fieldErrs, "current_step")

	_, err = f.service.DecodeDraft([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestOnboardingService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newOnboardingFixture(t, true)
		app := newApp(models.StatusDraft)

		f.mock.ExpectQuery(`FROM onboarding_applications WHERE id = \$1`).
			WithArgs(app.ID).
			WillReturnRows(appRows(t, app))
		f.mock.ExpectExec(`UPDATE onboarding_applications(.+)WHERE id = \$1 AND status = \$2`).
			WithArgs(app.ID, "draft", "submitted", nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		submitted, err := f.service.Submit(ctx, app.ID, testPhone, testRC)
		require.NoError(t, err)
		assert.Equal(t, models.StatusSubmitted, submitted.Status)
		require.NotNil(t, submitted.SubmittedAt)
		assert.Equal(t, fixedNow, *submitted.SubmittedAt)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Aadhaar Not Verified", func(t *testing.T) {
		f := newOnboardingFixture(t, true)
		app := newApp(models.StatusDraft)
		app.AadhaarVerified = false
		f.mock.ExpectQuery(`FROM onboarding_applications WHERE id = \$1`).WillReturnRows(appRows(t, app))

		_, err := f.service.Submit(ctx, app.ID, testPhone, testRC)
		var fieldErrs validator.FieldErrors
		require.True(t, errors.As(err, &fieldErrs))
		assert.Contains(t, fieldErrs, "aadhaar_verified")
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Already Submitted", func(t *testing.T) {
		f := newOnboardingFixture(t, true)
		app := newApp(models.StatusSubmitted)
		f.mock.ExpectQuery(`FROM onboarding_applications WHERE id = \$1`).WillReturnRows(appRows(t, app))

		_, err := f.service.Submit(ctx, app.ID, testPhone, testRC)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("Other Candidate", func(t *testing.T) {
		f := newOnboardingFixture(t, true)
		app := newApp(models.StatusDraft)
		f.mock.ExpectQuery(`FROM onboarding_applications WHERE id = \$1`).WillReturnRows(appRows(t, app))

		_, err := f.service.Submit(ctx, app.ID, "9123456789", testRC)
		assert.ErrorIs(t, err, ErrApplicationNotFound)
	})

	t.Run("Concurrent Change", func(t *testing.T) {
		f := newOnboardingFixture(t, true)
		app := newApp(models.StatusDraft)
		f.mock.ExpectQuery(`FROM onboarding_applications WHERE id = \$1`).WillReturnRows(appRows(t, app))
		f.mock.ExpectExec(`UPDATE onboarding_applications`).WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := f.service.Submit(ctx, app.ID, testPhone, testRC)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})
}

func TestOnboardingService_ListScopedToManager(t *testing.T) {
	f := newOnboardingFixture(t, true)
	actor := Actor{UserID: uuid.New(), Role: models.RoleStoreManager, OutletCodes: []string{"BLR-001"}}
	id := uuid.New()

	f.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM onboarding_applications WHERE outlet_code = ANY\(\$1\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	f.mock.ExpectQuery(`FROM onboarding_applications WHERE outlet_code = ANY\(\$1\)(.+)LIMIT \$2 OFFSET \$3`).
		WithArgs(sqlmock.AnyArg(), 20, 0).
		WillReturnRows(sqlmock.NewRows(summaryColumns).
			AddRow(id.String(), testPhone, "Rahul Sharma", "Crew Member", "BLR-001", 6, "submitted", fixedNow, fixedNow))

	resp, err := f.service.List(context.Background(), actor, models.ApplicationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 20, resp.Limit)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Rahul Sharma", resp.Items[0].FullName)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOnboardingService_ListRejectsUnknownStatus(t *testing.T) {
	f := newOnboardingFixture(t, true)

	_, err := f.service.List(context.Background(), Actor{Role: models.RoleSuperAdmin}, models.ApplicationFilter{Status: "hired"})
	var fieldErrs validator.FieldErrors
	require.True(t, errors.As(err, &fieldErrs))
	assert.Contains(t, fieldErrs, "status")
}

func TestOnboardingService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("Coach Sees Assigned Outlet", func(t *testing.T) {
		f := newOnboardingFixture(t, true)
		app := newApp(models.StatusSubmitted)
		outlet := "BLR-009"
		app.OutletCode = &outlet
		coach := Actor{UserID: uuid.New(), Role: models.RoleFieldCoach}

		f.mock.ExpectQuery(`FROM onboarding_applications WHERE id = \$1`).WillReturnRows(appRows(t, app))
		f.mock.ExpectQuery(`SELECT code FROM outlets WHERE field_coach_id = \$1`).
			WithArgs(coach.UserID).
			WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("BLR-009"))

		got, err := f.service.Get(ctx, coach, app.ID)
		require.NoError(t, err)
		assert.Equal(t, app.ID, got.ID)
	})

	t.Run("Manager Outside Scope", func(t *testing.T) {
		f := newOnboardingFixture(t, true)
		app := newApp(models.StatusSubmitted)
		manager := Actor{UserID: uuid.New(), Role: models.RoleStoreManager, OutletCodes: []string{"DEL-001"}}

		f.mock.ExpectQuery(`FROM onboarding_applications WHERE id = \$1`).WillReturnRows(appRows(t, app))

		_, err := f.service.Get(ctx, manager, app.ID)
		assert.ErrorIs(t, err, ErrApplicationNotFound)
	})

	t.Run("Missing", func(t *testing.T) {
		f := newOnboardingFixture(t, true)
		f.mock.ExpectQuery(`FROM onboarding_applications WHERE id = \$1`).WillReturnRows(sqlmock.NewRows(appColumns))

		_, err := f.service.Get(ctx, Actor{Role: models.RoleSuperAdmin}, uuid.New())
		assert.ErrorIs(t, err, ErrApplicationNotFound)
	})
}

func TestOnboardingService_Activate(t *testing.T) {
	ctx := context.Background()
	admin := Actor{UserID: uuid.New(), Role: models.RoleSuperAdmin}

	t.Run("Approved Becomes Active", func(t *testing.T) {
		f := newOnboardingFixture(t, true)
		app := newApp(models.StatusApproved)
		f.mock.ExpectQuery(`FROM onboarding_applications WHERE id = \$1`).WillReturnRows(appRows(t, app))
		f.mock.ExpectExec(`UPDATE onboarding_applications`).
			WithArgs(app.ID, "approved", "active", nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		got, err := f.service.Activate(ctx, admin, app.ID, testRC)
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, got.Status)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("Pending Cannot Activate", func(t *testing.T) {
		f := newOnboardingFixture(t, true)
		app := newApp(models.StatusPendingApproval)
		f.mock.ExpectQuery(`FROM onboarding_applications WHERE id = \$1`).WillReturnRows(appRows(t, app))

		_, err := f.service.Activate(ctx, admin, app.ID, testRC)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})
}
