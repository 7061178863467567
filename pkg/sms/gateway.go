package sms

import "context"

// SMSGateway defines the interface for sending SMS messages
type SMSGateway interface {
	// SendOTP sends an OTP code to a 10 digit Indian mobile number.
	// Returns the gateway's request ID.
	SendOTP(ctx context.Context, phone, otpCode string) (string, error)

	// GetName returns the name of the SMS gateway implementation
	GetName() string
}
