package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType represents the type of JWT token
type TokenType string

const (
	AccessToken    TokenType = "access"
	RefreshToken   TokenType = "refresh"
	CandidateToken TokenType = "candidate"
)

const issuer = "crewhire-onboarding"

// Claims represents the JWT claims structure.
// Staff tokens carry UserID, Email, Role and OutletCodes; candidate tokens carry Phone only.
type Claims struct {
	UserID      uuid.UUID `json:"user_id,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Role        string    `json:"role"`
	OutletCodes []string  `json:"outlet_codes,omitempty"`
	TokenType   TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// Service handles JWT operations
type Service struct {
	accessSecret       string
	refreshSecret      string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	candidateExpiry    time.Duration
}

// NewService creates a new JWT service
func NewService(accessSecret, refreshSecret string, accessExpiry, refreshExpiry, candidateExpiry time.Duration) *Service {
	return &Service{
		accessSecret:       accessSecret,
		refreshSecret:      refreshSecret,
		accessTokenExpiry:  accessExpiry,
		refreshTokenExpiry: refreshExpiry,
		candidateExpiry:    candidateExpiry,
	}
}

// AccessTokenExpiry is the lifetime of staff access tokens
func (s *Service) AccessTokenExpiry() time.Duration { return s.accessTokenExpiry }

// RefreshTokenExpiry is the lifetime of staff refresh tokens
func (s *Service) RefreshTokenExpiry() time.Duration { return s.refreshTokenExpiry }

// CandidateTokenExpiry is the lifetime of candidate tokens
func (s *Service) CandidateTokenExpiry() time.Duration { return s.candidateExpiry }

// GenerateAccessToken generates a new staff access token
func (s *Service) GenerateAccessToken(userID uuid.UUID, email, role string, outletCodes []string) (string, error) {
	claims := s.newClaims(AccessToken, userID.String(), s.accessTokenExpiry)
	claims.UserID = userID
	claims.Email = email
	claims.Role = role
	claims.OutletCodes = outletCodes

	return s.sign(claims, s.accessSecret)
}

// GenerateRefreshToken generates a new staff refresh token
func (s *Service) GenerateRefreshToken(userID uuid.UUID, email string) (string, error) {
	claims := s.newClaims(RefreshToken, userID.String(), s.refreshTokenExpiry)
	claims.UserID = userID
	claims.Email = email

	return s.sign(claims, s.refreshSecret)
}

// GenerateCandidateToken issues a token for a candidate whose phone passed OTP verification
func (s *Service) GenerateCandidateToken(phone string) (string, error) {
	claims := s.newClaims(CandidateToken, phone, s.candidateExpiry)
	claims.Phone = phone
	claims.Role = "candidate"

	return s.sign(claims, s.accessSecret)
}

// ValidateAccessToken validates and parses a staff access token
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.validateToken(tokenString, s.accessSecret, AccessToken)
}

// ValidateRefreshToken validates and parses a staff refresh token
func (s *Service) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return s.validateToken(tokenString, s.refreshSecret, RefreshToken)
}

// ValidateCandidateToken validates and parses a candidate token
func (s *Service) ValidateCandidateToken(tokenString string) (*Claims, error) {
	return s.validateToken(tokenString, s.accessSecret, CandidateToken)
}

// ValidateAny accepts either a staff access token or a candidate token
func (s *Service) ValidateAny(tokenString string) (*Claims, error) {
	claims, err := s.validateToken(tokenString, s.accessSecret, "")
	if err != nil {
		return nil, err
	}
	if claims.TokenType != AccessToken && claims.TokenType != CandidateToken {
		return nil, fmt.Errorf("invalid token type: %s", claims.TokenType)
	}
	return claims, nil
}

func (s *Service) newClaims(tokenType TokenType, subject string, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   subject,
			ID:        uuid.NewString(),
		},
	}
}

func (s *Service) sign(claims Claims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", claims.TokenType, err)
	}
	return tokenString, nil
}

// validateToken validates a token with the given secret; an empty expectedType skips the type check
func (s *Service) validateToken(tokenString, secret string, expectedType TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	if expectedType != "" && claims.TokenType != expectedType {
		return nil, fmt.Errorf("invalid token type: expected %s, got %s", expectedType, claims.TokenType)
	}

	return claims, nil
}

// GetTokenExpiry returns the expiry time of a token without verifying its signature
func (s *Service) GetTokenExpiry(tokenString string) (time.Time, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("token has no expiry time")
	}

	return claims.ExpiresAt.Time, nil
}

// IsExpired reports whether a validation error was caused by an expired token
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
