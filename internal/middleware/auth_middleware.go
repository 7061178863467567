package middleware

import (
	"net/http"
	"strings"

	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/internal/services"
	"github.com/crewhire/onboarding-backend/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// UserContextKey is the key used to store the signed-in staff user in Gin context
	UserContextKey = "user"

	// CandidateContextKey is the key used to store the verified candidate in Gin context
	CandidateContextKey = "candidate"
)

// UserContext represents the authenticated staff user's information
type UserContext struct {
	UserID      uuid.UUID        `json:"user_id"`
	Email       string           `json:"email"`
	Role        models.StaffRole `json:"role"`
	OutletCodes []string         `json:"outlet_codes"`
}

// Actor converts the token claims into the service-layer caller
func (u UserContext) Actor() services.Actor {
	return services.Actor{
		UserID:      u.UserID,
		Email:       u.Email,
		Role:        u.Role,
		OutletCodes: u.OutletCodes,
	}
}

// CandidateContext is the candidate whose phone passed OTP verification
type CandidateContext struct {
	Phone string `json:"phone"`
}

// bearerToken extracts the token from the Authorization header or aborts the request
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		logrus.WithFields(logrus.Fields{"path": c.Request.URL.Path, "ip": c.ClientIP()}).Debug("Auth failed: missing authorization header")
		abort(c, http.StatusUnauthorized, "unauthorized", "Authorization header is required", "MISSING_AUTH_HEADER")
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		abort(c, http.StatusUnauthorized, "unauthorized", "Invalid authorization header format. Expected: Bearer <token>", "INVALID_AUTH_FORMAT")
		return "", false
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		abort(c, http.StatusUnauthorized, "unauthorized", "Token cannot be empty", "INVALID_AUTH_FORMAT")
		return "", false
	}
	return tokenString, true
}

func rejectToken(c *gin.Context, err error) {
	fields := logrus.Fields{"path": c.Request.URL.Path, "ip": c.ClientIP(), "error": err.Error()}
	if jwt.IsExpired(err) {
		logrus.WithFields(fields).Info("Auth failed: token expired")
		abort(c, http.StatusUnauthorized, "token_expired", "Access token has expired. Please refresh your token.", "TOKEN_EXPIRED")
		return
	}
	logrus.WithFields(fields).Warn("Auth failed: invalid token")
	abort(c, http.StatusUnauthorized, "invalid_token", "Invalid access token", "INVALID_TOKEN")
}

func abort(c *gin.Context, status int, errCode, message, code string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":   errCode,
		"message": message,
		"code":    code,
	})
}

// AuthMiddleware validates staff access tokens
func AuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			return
		}

		claims, err := jwtService.ValidateAccessToken(tokenString)
		if err != nil {
			rejectToken(c, err)
			return
		}

		c.Set(UserContextKey, UserContext{
			UserID:      claims.UserID,
			Email:       claims.Email,
			Role:        models.StaffRole(claims.Role),
			OutletCodes: claims.OutletCodes,
		})
		c.Next()
	}
}

// CandidateAuthMiddleware validates candidate tokens issued after phone OTP
func CandidateAuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			return
		}

		claims, err := jwtService.ValidateCandidateToken(tokenString)
		if err != nil {
			rejectToken(c, err)
			return
		}
		if claims.Phone == "" {
			abort(c, http.StatusUnauthorized, "invalid_token", "Invalid access token", "INVALID_TOKEN")
			return
		}

		c.Set(CandidateContextKey, CandidateContext{Phone: claims.Phone})
		c.Next()
	}
}

// RequireRole allows the request through when the staff user holds one of roles
func RequireRole(roles ...models.StaffRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			abort(c, http.StatusUnauthorized, "unauthorized", "User context not found. Auth middleware may not be applied.", "MISSING_USER_CONTEXT")
			return
		}

		for _, role := range roles {
			if userCtx.Role == role {
				c.Next()
				return
			}
		}

		abort(c, http.StatusForbidden, "forbidden", "You don't have permission to access this resource", "INSUFFICIENT_PERMISSIONS")
	}
}

// GetUserContext retrieves the staff user from Gin context
func GetUserContext(c *gin.Context) (UserContext, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return UserContext{}, false
	}

	userCtx, ok := value.(UserContext)
	if !ok {
		return UserContext{}, false
	}

	return userCtx, true
}

// MustGetUserContext retrieves the staff user or panics (use only after AuthMiddleware)
func MustGetUserContext(c *gin.Context) UserContext {
	userCtx, exists := GetUserContext(c)
	if !exists {
		panic("user context not found - ensure AuthMiddleware is applied")
	}
	return userCtx
}

// GetCandidateContext retrieves the verified candidate from Gin context
func GetCandidateContext(c *gin.Context) (CandidateContext, bool) {
	value, exists := c.Get(CandidateContextKey)
	if !exists {
		return CandidateContext{}, false
	}
	candidate, ok := value.(CandidateContext)
	return candidate, ok
}
