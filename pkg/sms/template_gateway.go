package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/crewhire/onboarding-backend/pkg/validator"
)

// TemplateGateway sends OTPs through a DLT-registered template, the way Indian
// SMS providers require transactional messages to be sent.
type TemplateGateway struct {
	apiURL     string
	apiKey     string
	senderID   string
	templateID string
	client     *http.Client
}

// TemplateConfig holds configuration for the template SMS gateway
type TemplateConfig struct {
	APIURL     string
	APIKey     string
	SenderID   string
	TemplateID string
}

// NewTemplateGateway creates a new template SMS gateway client
func NewTemplateGateway(config TemplateConfig) *TemplateGateway {
	return &TemplateGateway{
		apiURL:     strings.TrimRight(config.APIURL, "/"),
		apiKey:     config.APIKey,
		senderID:   config.SenderID,
		templateID: config.TemplateID,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Recipient is one message target with its template variables
type Recipient struct {
	Mobiles string `json:"mobiles"`
	OTP     string `json:"otp"`
}

// SendRequest represents the SMS sending request structure
type SendRequest struct {
	TemplateID string      `json:"template_id"`
	Sender     string      `json:"sender"`
	ShortURL   string      `json:"short_url"`
	Recipients []Recipient `json:"recipients"`
}

// SendResponse represents the SMS sending response structure
type SendResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// FormatPhoneForGateway converts a mobile number to the 91XXXXXXXXXX form the gateway expects
func FormatPhoneForGateway(phone string) (string, error) {
	e164, err := validator.NewPhoneValidator().E164(phone)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(e164, "+"), nil
}

// SendOTP sends an OTP to a single phone number
func (g *TemplateGateway) SendOTP(ctx context.Context, phone, otpCode string) (string, error) {
	formattedPhone, err := FormatPhoneForGateway(phone)
	if err != nil {
		return "", fmt.Errorf("failed to format phone number: %w", err)
	}

	smsReq := SendRequest{
		TemplateID: g.templateID,
		Sender:     g.senderID,
		ShortURL:   "0",
		Recipients: []Recipient{{Mobiles: formattedPhone, OTP: otpCode}},
	}

	jsonData, err := json.Marshal(smsReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create SMS request: %w", err)
	}
	req.Header.Set("authkey", g.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read SMS response: %w", err)
	}

	var smsResp SendResponse
	if err := json.Unmarshal(body, &smsResp); err != nil {
		return "", fmt.Errorf("failed to parse SMS response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || smsResp.Type != "success" {
		return "", fmt.Errorf("SMS sending failed: %s (status %d)", smsResp.Message, resp.StatusCode)
	}

	return smsResp.Message, nil
}

// GetName returns the name of this SMS gateway
func (g *TemplateGateway) GetName() string {
	return "Template SMS Gateway"
}
