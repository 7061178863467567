// Package kyc is a client for the identity verification vendor used for PAN
// lookups and DigiLocker (Aadhaar) e-Sign sessions.
package kyc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every vendor call. Calls are never retried.
const DefaultTimeout = 30 * time.Second

var (
	// ErrSessionNotFound means the vendor does not know the e-Sign session:
	// it expired or was never completed and must be initiated again.
	ErrSessionNotFound = errors.New("e-sign session expired or never completed")

	// ErrPANNotFound means the registry has no record for the PAN
	ErrPANNotFound = errors.New("PAN not found in registry")

	// ErrUnreachable wraps transport failures and timeouts
	ErrUnreachable = errors.New("identity verification service is unreachable, please try again")
)

// APIError is a non-2xx response from the vendor
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("kyc vendor returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("kyc vendor returned status %d: %s", e.StatusCode, e.Message)
}

// Config holds configuration for the vendor client
type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration

	// HTTPClient overrides the default client (tests)
	HTTPClient *http.Client
}

// Client calls the KYC vendor API
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a vendor client
func NewClient(cfg Config) *Client {
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
		token:   cfg.APIToken,
		client:  httpClient,
	}
}

// envelope is the vendor's common response wrapper
type envelope struct {
	Data       json.RawMessage `json:"data"`
	StatusCode int             `json:"status_code"`
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
}

type panRequest struct {
	IDNumber string `json:"id_number"`
}

// PANDetails is the registry record for a PAN
type PANDetails struct {
	PAN      string `json:"pan_number"`
	FullName string `json:"full_name"`
	DOB      string `json:"dob"`
	Status   string `json:"status"`
}

type digilockerInitRequest struct {
	Data digilockerInitData `json:"data"`
}

type digilockerInitData struct {
	SignupFlow  bool   `json:"signup_flow"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// EsignSession is a started DigiLocker session
type EsignSession struct {
	ClientID  string `json:"client_id"`
	URL       string `json:"url"`
	ExpirySec int    `json:"expiry_seconds"`
}

// EsignStatus is the vendor's view of a DigiLocker session
type EsignStatus struct {
	ClientID      string `json:"client_id"`
	Status        string `json:"status"`
	Completed     bool   `json:"completed"`
	Failed        bool   `json:"failed"`
	AadhaarLinked bool   `json:"aadhaar_linked"`
}

// Verified reports whether the candidate completed e-Sign successfully
func (s *EsignStatus) Verified() bool {
	return s.Completed && !s.Failed
}

// LookupPAN fetches the registry record for a PAN
func (c *Client) LookupPAN(ctx context.Context, pan string) (*PANDetails, error) {
	var details PANDetails
	err := c.do(ctx, http.MethodPost, "/api/v1/pan/pan-comprehensive", panRequest{IDNumber: pan}, &details)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusUnprocessableEntity) {
			return nil, ErrPANNotFound
		}
		return nil, err
	}
	return &details, nil
}

// InitializeDigiLocker starts an e-Sign session; the vendor sends the candidate back to redirectURL
func (c *Client) InitializeDigiLocker(ctx context.Context, redirectURL string) (*EsignSession, error) {
	req := digilockerInitRequest{Data: digilockerInitData{SignupFlow: true, RedirectURL: redirectURL}}

	var session EsignSession
	if err := c.do(ctx, http.MethodPost, "/api/v1/digilocker/initialize", req, &session); err != nil {
		return nil, err
	}
	if session.ClientID == "" || session.URL == "" {
		return nil, fmt.Errorf("kyc vendor returned an incomplete session")
	}
	return &session, nil
}

// DigiLockerStatus polls a session. It is safe to call repeatedly.
func (c *Client) DigiLockerStatus(ctx context.Context, clientID string) (*EsignStatus, error) {
	var status EsignStatus
	err := c.do(ctx, http.MethodGet, "/api/v1/digilocker/status/"+url.PathEscape(clientID), nil, &status)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if status.ClientID == "" {
		status.ClientID = clientID
	}
	return &status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read kyc response: %w", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("failed to parse kyc response: %w", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to parse kyc response data: %w", err)
		}
	}
	return nil
}
