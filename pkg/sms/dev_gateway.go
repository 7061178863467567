package sms

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// DevGateway logs OTPs instead of sending them. Used when SMS_MODE=dev.
type DevGateway struct {
	logger *logrus.Logger
}

// NewDevGateway creates a logging gateway
func NewDevGateway(logger *logrus.Logger) *DevGateway {
	return &DevGateway{logger: logger}
}

// SendOTP logs the code and returns a synthetic request ID
func (g *DevGateway) SendOTP(ctx context.Context, phone, otpCode string) (string, error) {
	id := fmt.Sprintf("dev-%d", time.Now().UnixNano())
	g.logger.WithFields(logrus.Fields{
		"phone":      phone,
		"otp":        otpCode,
		"request_id": id,
	}).Info("SMS dev mode: OTP not sent")
	return id, nil
}

// GetName returns the name of this SMS gateway
func (g *DevGateway) GetName() string {
	return "Dev SMS Gateway"
}
