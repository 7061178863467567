package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/onboarding")
	t.Setenv("JWT_SECRET", "access")
	t.Setenv("JWT_REFRESH_SECRET", "refresh")
	t.Setenv("KYC_BASE_URL", "https://kyc.example.com/")
	t.Setenv("KYC_API_TOKEN", "token")
	t.Setenv("S3_BUCKET", "docs")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "https://kyc.example.com", cfg.KYC.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.KYC.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Redis.SessionTTL)
	assert.Equal(t, 72*time.Hour, cfg.Approval.TokenTTL)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Empty(t, cfg.Security.TrustedProxies)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("KYC_TIMEOUT", "10s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com ,")
	t.Setenv("OTP_MAX_ATTEMPTS", "not-a-number")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 172.31.5.4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.KYC.Timeout)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 3, cfg.OTP.MaxAttempts)
	assert.Equal(t, []string{"10.0.0.0/8", "172.31.5.4"}, cfg.Security.TrustedProxies)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{URL: "postgres://x"},
			JWT:      JWTConfig{Secret: "a", RefreshSecret: "b"},
			KYC:      KYCConfig{BaseURL: "https://kyc", APIToken: "t"},
			Storage:  StorageConfig{Bucket: "docs"},
			SMS:      SMSConfig{Mode: "dev"},
			Email:    EmailConfig{Mode: "dev"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing database", func(c *Config) { c.Database.URL = "" }, "DATABASE_URL"},
		{"missing kyc token", func(c *Config) { c.KYC.APIToken = "" }, "KYC_API_TOKEN"},
		{"missing bucket", func(c *Config) { c.Storage.Bucket = "" }, "S3_BUCKET"},
		{"production sms without key", func(c *Config) { c.SMS.Mode = "production" }, "SMS_API_URL"},
		{"unknown sms mode", func(c *Config) { c.SMS.Mode = "carrier-pigeon" }, "invalid SMS mode"},
		{"unknown email mode", func(c *Config) { c.Email.Mode = "fax" }, "invalid email mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
