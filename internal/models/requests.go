package models

import (
	"time"

	"github.com/google/uuid"
)

// LoginRequest represents the staff login request payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginResponse represents the staff login response
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         *User  `json:"user"`
}

// RefreshRequest represents the token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest optionally names the refresh token to revoke
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordRequest represents the change password request
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// CreateUserRequest creates a staff account
type CreateUserRequest struct {
	Email       string    `json:"email" binding:"required,email"`
	Password    string    `json:"password" binding:"required,min=8"`
	FullName    string    `json:"full_name" binding:"required"`
	Role        StaffRole `json:"role" binding:"required"`
	OutletCodes []string  `json:"outlet_codes"`
}

// UpdateUserRequest changes a staff account; nil fields are left alone
type UpdateUserRequest struct {
	FullName    *string    `json:"full_name"`
	Role        *StaffRole `json:"role"`
	OutletCodes []string   `json:"outlet_codes"`
	IsActive    *bool      `json:"is_active"`
}

// SendOTPRequest asks for a phone OTP
type SendOTPRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// SendOTPResponse is returned after an OTP is issued
type SendOTPResponse struct {
	Message   string `json:"message"`
	ExpiresIn int    `json:"expires_in"`
	OTP       string `json:"otp,omitempty"` // only in dev SMS mode
}

// VerifyOTPRequest verifies a phone OTP
type VerifyOTPRequest struct {
	Phone string `json:"phone" binding:"required"`
	OTP   string `json:"otp" binding:"required,len=6"`
}

// VerifyOTPResponse carries the candidate token and any existing draft
type VerifyOTPResponse struct {
	Verified  bool         `json:"verified"`
	Token     string       `json:"token"`
	ExpiresIn int64        `json:"expires_in"`
	Draft     *Application `json:"draft,omitempty"`
}

// SendEmailOTPRequest asks for an email OTP
type SendEmailOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// VerifyEmailOTPRequest verifies an email OTP
type VerifyEmailOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,len=6"`
}

// SaveDraftRequest persists the wizard form. Verification flags in the payload are ignored.
type SaveDraftRequest struct {
	Phone       string          `json:"phone" binding:"required"`
	CurrentStep int             `json:"current_step" binding:"required,min=1,max=6"`
	Data        ApplicationData `json:"data"`
}

// VerifyPANRequest looks up a PAN with the KYC vendor
type VerifyPANRequest struct {
	PAN           string     `json:"pan" binding:"required"`
	Name          string     `json:"name"`
	DateOfBirth   string     `json:"date_of_birth"`
	ApplicationID *uuid.UUID `json:"application_id"`
}

// VerifyPANResponse is the outcome of a PAN lookup
type VerifyPANResponse struct {
	Verified   bool    `json:"verified"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	Similarity float64 `json:"similarity,omitempty"`
}

// InitiateAadhaarRequest starts a DigiLocker e-Sign session
type InitiateAadhaarRequest struct {
	ApplicationID uuid.UUID `json:"application_id" binding:"required"`
	RedirectURL   string    `json:"redirect_url"`
}

// InitiateAadhaarResponse tells the client where to send the candidate
type InitiateAadhaarResponse struct {
	TransactionID string    `json:"transaction_id"`
	RedirectURL   string    `json:"redirect_url"`
	ResumeToken   string    `json:"resume_token"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// AadhaarStatusRequest polls an e-Sign session
type AadhaarStatusRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
}

// AadhaarStatusResponse is the server-confirmed e-Sign status
type AadhaarStatusResponse struct {
	Verified bool   `json:"verified"`
	Status   string `json:"status"`
}

// ResumeRequest is sent when the candidate returns from the vendor redirect
type ResumeRequest struct {
	ResumeToken string `json:"resume_token" binding:"required"`
	ClientID    string `json:"client_id" binding:"required"`
}

// ResumeResponse rebuilds the wizard after the redirect
type ResumeResponse struct {
	Application *Application `json:"application"`
	Verified    bool         `json:"verified"`
	Status      string       `json:"status"`
	Token       string       `json:"token"`
	ExpiresIn   int64        `json:"expires_in"`
}

// ApplicationListResponse is a page of applications
type ApplicationListResponse struct {
	Items  []ApplicationSummary `json:"items"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// RequestApprovalResponse confirms an approval email was sent
type RequestApprovalResponse struct {
	Recipient string    `json:"recipient"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CheckTokenResponse describes the application behind an approval link
type CheckTokenResponse struct {
	Valid       bool               `json:"valid"`
	ExpiresAt   time.Time          `json:"expires_at"`
	Application ApplicationSummary `json:"application"`
}

// DecisionResponse is returned after an approve or reject link is used
type DecisionResponse struct {
	ApplicationID uuid.UUID         `json:"application_id"`
	Status        ApplicationStatus `json:"status"`
}

// CreateOutletRequest creates an outlet
type CreateOutletRequest struct {
	Code         string     `json:"code" binding:"required"`
	Name         string     `json:"name" binding:"required"`
	AddressLine  string     `json:"address_line"`
	City         string     `json:"city"`
	State        string     `json:"state"`
	Pincode      string     `json:"pincode"`
	FieldCoachID *uuid.UUID `json:"field_coach_id"`
}

// UpdateOutletRequest changes an outlet; nil fields are left alone
type UpdateOutletRequest struct {
	Name         *string    `json:"name"`
	AddressLine  *string    `json:"address_line"`
	City         *string    `json:"city"`
	State        *string    `json:"state"`
	Pincode      *string    `json:"pincode"`
	FieldCoachID *uuid.UUID `json:"field_coach_id"`
	IsActive     *bool      `json:"is_active"`
}

// CreateRoleRequest creates a job role
type CreateRoleRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// UpdateRoleRequest changes a job role; nil fields are left alone
type UpdateRoleRequest struct {
	Description *string  `json:"description"`
	Permissions []string `json:"permissions"`
}

// CreateDeactivationRequest is raised by a store manager
type CreateDeactivationRequest struct {
	ApplicationID uuid.UUID        `json:"application_id" binding:"required"`
	Kind          DeactivationKind `json:"kind" binding:"required"`
	Reason        string           `json:"reason" binding:"required"`
}

// ResolveDeactivationRequest approves or rejects a pending request
type ResolveDeactivationRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}
