package models

import (
	"time"

	"github.com/google/uuid"
)

// Outlet is a restaurant location
type Outlet struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Code          string     `json:"code" db:"code"`
	Name          string     `json:"name" db:"name"`
	AddressLine   string     `json:"address_line" db:"address_line"`
	City          string     `json:"city" db:"city"`
	State         string     `json:"state" db:"state"`
	Pincode       string     `json:"pincode" db:"pincode"`
	FieldCoachID  *uuid.UUID `json:"field_coach_id,omitempty" db:"field_coach_id"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	EmployeeCount int        `json:"employee_count" db:"employee_count"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Role is a job designation a candidate is hired into
type Role struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Permissions StringSet `json:"permissions" db:"permissions"`
	UserCount   int       `json:"user_count" db:"user_count"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// DeactivationKind distinguishes a voluntary exit from a termination
type DeactivationKind string

const (
	KindDeactivation DeactivationKind = "deactivation"
	KindTermination  DeactivationKind = "termination"
)

// Valid reports whether k is a known kind
func (k DeactivationKind) Valid() bool {
	return k == KindDeactivation || k == KindTermination
}

// ResultingStatus is the application status after the request is approved
func (k DeactivationKind) ResultingStatus() ApplicationStatus {
	if k == KindTermination {
		return StatusTerminated
	}
	return StatusDeactivated
}

// RequestStatus is the state of a deactivation request
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// DeactivationRequest asks for an active employee to be deactivated or terminated
type DeactivationRequest struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	ApplicationID  uuid.UUID        `json:"application_id" db:"application_id"`
	RequestedBy    uuid.UUID        `json:"requested_by" db:"requested_by"`
	Kind           DeactivationKind `json:"kind" db:"kind"`
	Reason         string           `json:"reason" db:"reason"`
	Status         RequestStatus    `json:"status" db:"status"`
	ResolvedBy     *uuid.UUID       `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolutionNote *string          `json:"resolution_note,omitempty" db:"resolution_note"`
	OutletCode     *string          `json:"outlet_code,omitempty" db:"outlet_code"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	ResolvedAt     *time.Time       `json:"resolved_at,omitempty" db:"resolved_at"`
}

// ApprovalToken backs an emailed approve/reject link
type ApprovalToken struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	ApplicationID uuid.UUID  `json:"application_id" db:"application_id"`
	TokenHash     string     `json:"-" db:"token_hash"`
	ExpiresAt     time.Time  `json:"expires_at" db:"expires_at"`
	UsedAt        *time.Time `json:"used_at,omitempty" db:"used_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// Document is an uploaded file attached to an application
type Document struct {
	ID            uuid.UUID `json:"id" db:"id"`
	ApplicationID uuid.UUID `json:"application_id" db:"application_id"`
	Name          string    `json:"name" db:"name"`
	ObjectKey     string    `json:"-" db:"object_key"`
	ContentType   string    `json:"content_type" db:"content_type"`
	Size          int64     `json:"size" db:"size"`
	UploadedAt    time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// DocumentNames are the document slots a candidate can fill
var DocumentNames = []string{
	"photo",
	"aadhaar_front",
	"aadhaar_back",
	"pan_card",
	"education_certificate",
	"bank_passbook",
}

// IsKnownDocument reports whether name is an accepted document slot
func IsKnownDocument(name string) bool {
	for _, n := range DocumentNames {
		if n == name {
			return true
		}
	}
	return false
}

// DashboardStats is the summary shown on staff dashboards
type DashboardStats struct {
	ByStatus             map[ApplicationStatus]int `json:"by_status"`
	Total                int                       `json:"total"`
	PendingDeactivations int                       `json:"pending_deactivations"`
	Outlets              int                       `json:"outlets"`
	SubmittedLast7Days   int                       `json:"submitted_last_7_days"`
}
