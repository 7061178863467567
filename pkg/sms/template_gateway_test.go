package sms

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTemplateGateway(t *testing.T) {
	config := TemplateConfig{
		APIURL:     "https://sms.example.com/api/v5/flow/",
		APIKey:     "key",
		SenderID:   "CRWHIR",
		TemplateID: "tmpl-1",
	}

	gateway := NewTemplateGateway(config)

	assert.NotNil(t, gateway)
	assert.Equal(t, "https://sms.example.com/api/v5/flow", gateway.apiURL)
	assert.Equal(t, config.SenderID, gateway.senderID)
	assert.NotNil(t, gateway.client)
	assert.Equal(t, "Template SMS Gateway", gateway.GetName())
}

func TestFormatPhoneForGateway(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    string
		expectError bool
	}{
		{"10 digits", "9876543210", "919876543210", false},
		{"with country code", "+91 98765 43210", "919876543210", false},
		{"with trunk zero", "09876543210", "919876543210", false},
		{"with dashes", "98765-43210", "919876543210", false},
		{"too short", "98765", "", true},
		{"landline prefix", "2212345678", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := FormatPhoneForGateway(tt.input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestTemplateGateway_SendOTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("authkey"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req SendRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "tmpl-1", req.TemplateID)
		require.Len(t, req.Recipients, 1)
		assert.Equal(t, "919876543210", req.Recipients[0].Mobiles)
		assert.Equal(t, "123456", req.Recipients[0].OTP)

		w.Write([]byte(`{"type":"success","message":"req-42"}`))
	}))
	defer server.Close()

	gateway := NewTemplateGateway(TemplateConfig{APIURL: server.URL, APIKey: "key", SenderID: "CRWHIR", TemplateID: "tmpl-1"})

	id, err := gateway.SendOTP(context.Background(), "9876543210", "123456")
	require.NoError(t, err)
	assert.Equal(t, "req-42", id)
}

func TestTemplateGateway_SendOTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","message":"invalid authkey"}`))
	}))
	defer server.Close()

	gateway := NewTemplateGateway(TemplateConfig{APIURL: server.URL})

	_, err := gateway.SendOTP(context.Background(), "9876543210", "123456")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid authkey")

	_, err = gateway.SendOTP(context.Background(), "123", "123456")
	assert.Error(t, err)
}

func TestDevGateway_SendOTP(t *testing.T) {
	var buf strings.Builder
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	gateway := NewDevGateway(logger)
	id, err := gateway.SendOTP(context.Background(), "9876543210", "654321")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "dev-"))
	assert.Contains(t, buf.String(), `"otp":"654321"`)
	assert.Equal(t, "Dev SMS Gateway", gateway.GetName())
}
