package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	SMS      SMSConfig
	OTP      OTPConfig
	CORS     CORSConfig
	Security SecurityConfig

	// KYC vendor (PAN lookup, DigiLocker Aadhaar e-Sign)
	KYC KYCConfig

	// Uploaded candidate documents
	Storage StorageConfig

	// Outbound email (approval links, email OTP)
	Email EmailConfig

	// Suspend sessions for the e-Sign redirect
	Redis RedisConfig

	Approval ApprovalConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
	PublicURL   string // base URL of this API, used in approval email links
	FrontendURL string // base URL of the candidate web app, used as e-Sign redirect target
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret             string
	RefreshSecret      string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	CandidateExpiry    time.Duration
}

// SMSConfig holds SMS gateway configuration
type SMSConfig struct {
	Mode     string // "dev" returns the OTP in the response, "production" sends an SMS
	APIURL   string
	APIKey   string
	SenderID string
	Template string // vendor template id for the OTP message
}

// OTPConfig holds OTP-related configuration
type OTPConfig struct {
	ExpiryMinutes     int
	MaxAttempts       int
	RateLimit         int
	RateWindowMinutes int
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	BcryptCost       int
	EnableRequestLog bool
	EnableAuditLog   bool
	MaxUploadBytes   int64

	// TrustedProxies lists the load balancer addresses or CIDRs whose
	// forwarding headers are believed. Empty means none.
	TrustedProxies []string
}

// KYCConfig holds the identity verification vendor configuration
type KYCConfig struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// StorageConfig holds S3 document storage configuration
type StorageConfig struct {
	Bucket   string
	Region   string
	Prefix   string
	Endpoint string // optional, for S3-compatible stores
}

// EmailConfig holds SES configuration
type EmailConfig struct {
	Mode   string // "dev" logs emails, "production" sends through SES
	Region string
	From   string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address    string
	Password   string
	DB         int
	SessionTTL time.Duration
}

// ApprovalConfig holds email approval link configuration
type ApprovalConfig struct {
	TokenTTL time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			PublicURL:   strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8080"), "/"),
			FrontendURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", ""),
			RefreshSecret:      getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenExpiry:  time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
			RefreshTokenExpiry: time.Duration(getEnvAsInt("JWT_REFRESH_TOKEN_EXPIRY", 604800)) * time.Second,
			CandidateExpiry:    time.Duration(getEnvAsInt("JWT_CANDIDATE_TOKEN_EXPIRY", 86400)) * time.Second,
		},
		SMS: SMSConfig{
			Mode:     getEnv("SMS_MODE", "dev"),
			APIURL:   getEnv("SMS_API_URL", ""),
			APIKey:   getEnv("SMS_API_KEY", ""),
			SenderID: getEnv("SMS_SENDER_ID", "CRWHIR"),
			Template: getEnv("SMS_OTP_TEMPLATE_ID", ""),
		},
		OTP: OTPConfig{
			ExpiryMinutes:     getEnvAsInt("OTP_EXPIRY_MINUTES", 5),
			MaxAttempts:       getEnvAsInt("OTP_MAX_ATTEMPTS", 3),
			RateLimit:         getEnvAsInt("OTP_RATE_LIMIT", 3),
			RateWindowMinutes: getEnvAsInt("OTP_RATE_WINDOW_MINUTES", 10),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Security: SecurityConfig{
			BcryptCost:       getEnvAsInt("BCRYPT_COST", 12),
			EnableRequestLog: getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
			EnableAuditLog:   getEnvAsBool("ENABLE_AUDIT_LOGGING", true),
			MaxUploadBytes:   int64(getEnvAsInt("MAX_UPLOAD_BYTES", 10<<20)),
			TrustedProxies:   getEnvAsSlice("TRUSTED_PROXIES", nil),
		},
		KYC: KYCConfig{
			BaseURL:  strings.TrimRight(getEnv("KYC_BASE_URL", ""), "/"),
			APIToken: getEnv("KYC_API_TOKEN", ""),
			Timeout:  getEnvAsDuration("KYC_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Bucket:   getEnv("S3_BUCKET", ""),
			Region:   getEnv("AWS_REGION", "ap-south-1"),
			Prefix:   getEnv("S3_PREFIX", "onboarding"),
			Endpoint: getEnv("S3_ENDPOINT", ""),
		},
		Email: EmailConfig{
			Mode:   getEnv("EMAIL_MODE", "dev"),
			Region: getEnv("SES_REGION", getEnv("AWS_REGION", "ap-south-1")),
			From:   getEnv("EMAIL_FROM", "no-reply@crewhire.in"),
		},
		Redis: RedisConfig{
			Address:    getEnv("REDIS_ADDR", "localhost:6379"),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvAsInt("REDIS_DB", 0),
			SessionTTL: getEnvAsDuration("ESIGN_SESSION_TTL", 30*time.Minute),
		},
		Approval: ApprovalConfig{
			TokenTTL: getEnvAsDuration("APPROVAL_TOKEN_TTL", 72*time.Hour),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.JWT.RefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	if c.KYC.BaseURL == "" || c.KYC.APIToken == "" {
		return fmt.Errorf("KYC_BASE_URL and KYC_API_TOKEN are required")
	}

	if c.Storage.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required")
	}

	if c.SMS.Mode == "production" {
		if c.SMS.APIURL == "" || c.SMS.APIKey == "" {
			return fmt.Errorf("SMS_API_URL and SMS_API_KEY are required in production mode")
		}
	} else if c.SMS.Mode != "dev" {
		return fmt.Errorf("invalid SMS mode: %s (must be 'dev' or 'production')", c.SMS.Mode)
	}

	if c.Email.Mode != "dev" && c.Email.Mode != "production" {
		return fmt.Errorf("invalid email mode: %s (must be 'dev' or 'production')", c.Email.Mode)
	}

	return nil
}

// IsProduction reports whether the server runs in production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration value for %s, using default: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
