package services

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/pkg/jwt"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

var appColumns = []string{
	"id", "phone", "current_step", "status", "data",
	"phone_verified", "email_verified", "pan_verified", "aadhaar_verified",
	"aadhaar_transaction_id", "outlet_code", "field_coach_id",
	"submitted_at", "approved_at", "rejection_reason", "created_at", "updated_at",
}

var userColumns = []string{
	"id", "email", "password_hash", "full_name", "role", "outlet_codes",
	"is_active", "last_login_at", "created_at", "updated_at", "created_by",
}

func newJWT() *jwt.Service {
	return jwt.NewService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour, time.Hour)
}

func completeData() models.ApplicationData {
	addr := models.Address{Line1: "12 MG Road", City: "Bengaluru", State: "Karnataka", Pincode: "560001"}
	return models.ApplicationData{
		FullName:              "Rahul Sharma",
		DateOfBirth:           "1998-04-12",
		Gender:                "male",
		Phone:                 testPhone,
		Email:                 "rahul@example.com",
		CurrentAddress:        addr,
		PermanentAddress:      addr,
		HighestQualification:  "B.Com",
		Institution:           "Christ University",
		YearOfPassing:         2019,
		UniformSize:           "M",
		ShoeSize:              9,
		EmergencyContactName:  "Meena Sharma",
		EmergencyContactPhone: "9123456780",
		Role:                  "Crew Member",
		OutletCode:            "BLR-001",
		DateOfJoining:         "2024-07-01",
		PANNumber:             "ABCDE1234F",
		AadhaarNumber:         "123412341234",
	}
}

func newApp(status models.ApplicationStatus) *models.Application {
	outlet := "BLR-001"
	return &models.Application{
		ID:          uuid.New(),
		Phone:       testPhone,
		CurrentStep: models.StepIdentity,
		Status:      status,
		Data:        completeData(),
		VerificationFlags: models.VerificationFlags{
			PhoneVerified:   true,
			PANVerified:     true,
			AadhaarVerified: true,
		},
		OutletCode: &outlet,
	}
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullableID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

func appRows(t *testing.T, apps ...*models.Application) *sqlmock.Rows {
	t.Helper()
	rows := sqlmock.NewRows(appColumns)
	for _, app := range apps {
		data, err := json.Marshal(app.Data)
		require.NoError(t, err)

		var submittedAt interface{}
		if app.SubmittedAt != nil {
			submittedAt = *app.SubmittedAt
		}
		rows.AddRow(
			app.ID.String(), app.Phone, app.CurrentStep, string(app.Status), data,
			app.PhoneVerified, app.EmailVerified, app.PANVerified, app.AadhaarVerified,
			nullable(app.AadhaarTransactionID), nullable(app.OutletCode), nullableID(app.FieldCoachID),
			submittedAt, nil, nullable(app.RejectionReason), fixedNow, fixedNow,
		)
	}
	return rows
}

func userRows(users ...*models.User) *sqlmock.Rows {
	rows := sqlmock.NewRows(userColumns)
	for _, u := range users {
		rows.AddRow(
			u.ID.String(), u.Email, u.PasswordHash, u.FullName, string(u.Role),
			[]byte("{"+strings.Join(u.OutletCodes, ",")+"}"),
			u.IsActive, nil, fixedNow, fixedNow, nil,
		)
	}
	return rows
}

func staffUser(role models.StaffRole, outlets ...string) *models.User {
	return &models.User{
		ID:          uuid.New(),
		Email:       string(role) + "@crewhire.example",
		FullName:    "Staff " + string(role),
		Role:        role,
		OutletCodes: outlets,
		IsActive:    true,
	}
}

var outletColumns = []string{
	"id", "code", "name", "address_line", "city", "state", "pincode",
	"field_coach_id", "is_active", "created_at", "updated_at", "employee_count",
}

func outletRows(outlets ...*models.Outlet) *sqlmock.Rows {
	rows := sqlmock.NewRows(outletColumns)
	for _, o := range outlets {
		rows.AddRow(
			o.ID.String(), o.Code, o.Name, o.AddressLine, o.City, o.State, o.Pincode,
			nullableID(o.FieldCoachID), o.IsActive, fixedNow, fixedNow, o.EmployeeCount,
		)
	}
	return rows
}

func newOutlet(code string, coachID *uuid.UUID) *models.Outlet {
	return &models.Outlet{
		ID:           uuid.New(),
		Code:         code,
		Name:         "Outlet " + code,
		City:         "Bengaluru",
		State:        "Karnataka",
		Pincode:      "560001",
		FieldCoachID: coachID,
		IsActive:     true,
	}
}
