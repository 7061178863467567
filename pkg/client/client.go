// Package client is a typed REST client for the onboarding API as used by the
// candidate wizard.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/google/uuid"
)

// DefaultTimeout bounds every API call. Calls are never retried.
const DefaultTimeout = 30 * time.Second

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrValidation     = errors.New("validation failed")
	ErrRateLimited    = errors.New("rate limited")
	ErrSessionExpired = errors.New("e-sign session expired or never completed")
)

// APIError is a non-2xx answer from the API
type APIError struct {
	StatusCode int
	ErrorType  string            `json:"error"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	Fields     map[string]string `json:"fields"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

// Is matches the package sentinels so callers can use errors.Is
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrSessionExpired:
		return e.Code == "SESSION_NOT_FOUND" || e.Code == "RESUME_EXPIRED"
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrValidation:
		return e.Code == "VALIDATION_FAILED"
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// Config holds configuration for the API client
type Config struct {
	BaseURL string // e.g. https://api.example.com/api/v1
	Timeout time.Duration

	// HTTPClient overrides the default client (tests)
	HTTPClient *http.Client
}

// Client calls the onboarding API. The candidate token is set by VerifyOTP and
// Resume and sent on every later call.
type Client struct {
	baseURL string
	client  *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  httpClient,
	}
}

// Token returns the current candidate token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the candidate token
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// SendOTP requests a phone OTP
func (c *Client) SendOTP(ctx context.Context, phone string) (*models.SendOTPResponse, error) {
	var resp models.SendOTPResponse
	if err := c.doJSON(ctx, http.MethodPost, "/onboarding/send-otp", models.SendOTPRequest{Phone: phone}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyOTP verifies a phone OTP and keeps the returned candidate token
func (c *Client) VerifyOTP(ctx context.Context, phone, otp string) (*models.VerifyOTPResponse, error) {
	var resp models.VerifyOTPResponse
	if err := c.doJSON(ctx, http.MethodPost, "/onboarding/verify-otp", models.VerifyOTPRequest{Phone: phone, OTP: otp}, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp, nil
}

// SendEmailOTP requests an email OTP
func (c *Client) SendEmailOTP(ctx context.Context, email string) (*models.SendOTPResponse, error) {
	var resp models.SendOTPResponse
	if err := c.doJSON(ctx, http.MethodPost, "/onboarding/send-email-otp", models.SendEmailOTPRequest{Email: email}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyEmailOTP verifies an email OTP
func (c *Client) VerifyEmailOTP(ctx context.Context, email, otp string) error {
	return c.doJSON(ctx, http.MethodPost, "/onboarding/verify-email-otp", models.VerifyEmailOTPRequest{Email: email, OTP: otp}, nil)
}

// GetDraft loads the draft for phone. A missing draft is ErrNotFound.
func (c *Client) GetDraft(ctx context.Context, phone string) (*models.Application, error) {
	var app models.Application
	if err := c.doJSON(ctx, http.MethodGet, "/onboarding/draft/"+url.PathEscape(phone), nil, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// SaveDraft persists the wizard form
func (c *Client) SaveDraft(ctx context.Context, req models.SaveDraftRequest) (*models.Application, error) {
	var app models.Application
	if err := c.doJSON(ctx, http.MethodPost, "/onboarding/draft", req, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// Submit submits the application
func (c *Client) Submit(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := c.doJSON(ctx, http.MethodPost, "/onboarding/"+id.String()+"/submit", nil, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// File is one document to upload
type File struct {
	Name        string // document slot, e.g. "photo"
	Filename    string
	ContentType string
	Body        io.Reader
}

// Upload sends files as one multipart request
func (c *Client) Upload(ctx context.Context, id uuid.UUID, files []File) ([]models.Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Name, f.Filename))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := mw.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("failed to create form part %s: %w", f.Name, err)
		}
		if _, err := io.Copy(part, f.Body); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	var resp struct {
		Documents []models.Document `json:"documents"`
	}
	if err := c.do(ctx, http.MethodPost, "/onboarding/"+id.String()+"/upload", mw.FormDataContentType(), &buf, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// VerifyPAN looks up a PAN with the KYC vendor
func (c *Client) VerifyPAN(ctx context.Context, req models.VerifyPANRequest) (*models.VerifyPANResponse, error) {
	var resp models.VerifyPANResponse
	if err := c.doJSON(ctx, http.MethodPost, "/onboarding/verify-pan", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InitiateAadhaarEsign starts a DigiLocker session
func (c *Client) InitiateAadhaarEsign(ctx context.Context, req models.InitiateAadhaarRequest) (*models.InitiateAadhaarResponse, error) {
	var resp models.InitiateAadhaarResponse
	if err := c.doJSON(ctx, http.MethodPost, "/onboarding/verify-aadhaar/initiate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckAadhaarStatus polls a DigiLocker session
func (c *Client) CheckAadhaarStatus(ctx context.Context, transactionID string) (*models.AadhaarStatusResponse, error) {
	var resp models.AadhaarStatusResponse
	if err := c.doJSON(ctx, http.MethodPost, "/onboarding/verify-aadhaar/status", models.AadhaarStatusRequest{TransactionID: transactionID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resume redeems a resume token after the vendor redirect and keeps the fresh candidate token
func (c *Client) Resume(ctx context.Context, resumeToken, clientID string) (*models.ResumeResponse, error) {
	var resp models.ResumeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/onboarding/resume", models.ResumeRequest{ResumeToken: resumeToken, ClientID: clientID}, &resp); err != nil {
		return nil, err
	}
	if resp.Token != "" {
		c.SetToken(resp.Token)
	}
	return &resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	if body == nil {
		return c.do(ctx, method, path, "", nil, out)
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, method, path, "application/json", bytes.NewReader(jsonData), out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach onboarding api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
