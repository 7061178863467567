package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Wizard steps
const (
	StepPersonal   = 1
	StepContact    = 2
	StepEducation  = 3
	StepSizing     = 4
	StepEmployment = 5
	StepIdentity   = 6

	FirstStep = StepPersonal
	LastStep  = StepIdentity
)

// ApplicationStatus is the lifecycle state of an onboarding application
type ApplicationStatus string

const (
	StatusDraft               ApplicationStatus = "draft"
	StatusSubmitted           ApplicationStatus = "submitted"
	StatusPendingApproval     ApplicationStatus = "pending_approval"
	StatusApproved            ApplicationStatus = "approved"
	StatusRejected            ApplicationStatus = "rejected"
	StatusActive              ApplicationStatus = "active"
	StatusDeactivationPending ApplicationStatus = "deactivation_pending"
	StatusDeactivated         ApplicationStatus = "deactivated"
	StatusTerminated          ApplicationStatus = "terminated"
)

// ErrInvalidTransition is returned when a status change is not in the lifecycle table
var ErrInvalidTransition = errors.New("invalid status transition")

var statusTransitions = map[ApplicationStatus][]ApplicationStatus{
	StatusDraft:               {StatusSubmitted},
	StatusSubmitted:           {StatusPendingApproval},
	StatusPendingApproval:     {StatusApproved, StatusRejected},
	StatusApproved:            {StatusActive},
	StatusActive:              {StatusDeactivationPending},
	StatusDeactivationPending: {StatusDeactivated, StatusTerminated, StatusActive},
}

// Valid reports whether s is a known status
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusPendingApproval, StatusApproved, StatusRejected,
		StatusActive, StatusDeactivationPending, StatusDeactivated, StatusTerminated:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition wrapped with both states when the move is not allowed
func CheckTransition(from, to ApplicationStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// EmployedStatuses are the statuses counted as an employee of an outlet
var EmployedStatuses = []string{
	string(StatusApproved),
	string(StatusActive),
	string(StatusDeactivationPending),
}

// Address is a postal address captured in step 2
type Address struct {
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// WorkExperience is one entry of the candidate's work history
type WorkExperience struct {
	Employer    string `json:"employer"`
	Designation string `json:"designation"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
}

// ApplicationData is the form document stored in the data jsonb column.
// Fields are grouped by the wizard step that collects them.
type ApplicationData struct {
	// Step 1: personal
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth"` // YYYY-MM-DD
	Gender      string `json:"gender"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`

	// Step 2: contact
	SecondaryPhone   string  `json:"secondary_phone,omitempty"`
	CurrentAddress   Address `json:"current_address"`
	PermanentAddress Address `json:"permanent_address"`

	// Step 3: education and work
	HighestQualification string           `json:"highest_qualification"`
	Institution          string           `json:"institution"`
	YearOfPassing        int              `json:"year_of_passing,omitempty"`
	WorkHistory          []WorkExperience `json:"work_history,omitempty"`

	// Step 4: sizing and medical
	UniformSize           string `json:"uniform_size"`
	ShoeSize              int    `json:"shoe_size,omitempty"`
	HasMedicalCondition   bool   `json:"has_medical_condition"`
	MedicalDetails        string `json:"medical_details,omitempty"`
	EmergencyContactName  string `json:"emergency_contact_name"`
	EmergencyContactPhone string `json:"emergency_contact_phone"`

	// Step 5: employment
	Role          string `json:"role"`
	OutletCode    string `json:"outlet_code"`
	FieldCoachID  string `json:"field_coach_id,omitempty"`
	DateOfJoining string `json:"date_of_joining"`
	PANNumber     string `json:"pan_number"`

	// Step 6: identity
	AadhaarNumber string `json:"aadhaar_number"`
}

// Value implements the driver.Valuer interface
func (d ApplicationData) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal application data: %w", err)
	}
	return b, nil
}

// Scan implements the sql.Scanner interface
func (d *ApplicationData) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = ApplicationData{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type for application data: %T", src)
	}
	return json.Unmarshal(raw, d)
}

// VerificationFlags are owned by the server: clients can read them but never set them
type VerificationFlags struct {
	PhoneVerified   bool `json:"phone_verified" db:"phone_verified"`
	EmailVerified   bool `json:"email_verified" db:"email_verified"`
	PANVerified     bool `json:"pan_verified" db:"pan_verified"`
	AadhaarVerified bool `json:"aadhaar_verified" db:"aadhaar_verified"`
}

// Application is one candidate's onboarding record
type Application struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	Phone       string            `json:"phone" db:"phone"`
	CurrentStep int               `json:"current_step" db:"current_step"`
	Status      ApplicationStatus `json:"status" db:"status"`
	Data        ApplicationData   `json:"data" db:"data"`
	VerificationFlags
	AadhaarTransactionID *string    `json:"aadhaar_transaction_id,omitempty" db:"aadhaar_transaction_id"`
	OutletCode           *string    `json:"outlet_code,omitempty" db:"outlet_code"`
	FieldCoachID         *uuid.UUID `json:"field_coach_id,omitempty" db:"field_coach_id"`
	SubmittedAt          *time.Time `json:"submitted_at,omitempty" db:"submitted_at"`
	ApprovedAt           *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	RejectionReason      *string    `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// IsEditable reports whether the candidate may still change the draft
func (a *Application) IsEditable() bool {
	return a.Status == StatusDraft
}

// ApplicationSummary is the row shape used by staff list screens
type ApplicationSummary struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	Phone       string            `json:"phone" db:"phone"`
	FullName    string            `json:"full_name" db:"full_name"`
	Role        string            `json:"role" db:"role"`
	OutletCode  *string           `json:"outlet_code,omitempty" db:"outlet_code"`
	CurrentStep int               `json:"current_step" db:"current_step"`
	Status      ApplicationStatus `json:"status" db:"status"`
	SubmittedAt *time.Time        `json:"submitted_at,omitempty" db:"submitted_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

// ApplicationFilter narrows staff list queries.
// OutletCodes restricts results to those outlets when non-nil (manager and coach scope).
type ApplicationFilter struct {
	Status      ApplicationStatus
	OutletCode  string
	Search      string
	OutletCodes []string
	Limit       int
	Offset      int
}
