package utils

import (
	"github.com/gin-gonic/gin"
)

// ClientIP extracts the caller's address for audit and rate limiting.
//
// Forwarding headers (X-Forwarded-For, then X-Real-IP) are honoured only when
// the direct peer is one of the engine's trusted proxies, and X-Forwarded-For
// is read from the right so entries a client prepends are skipped. With no
// trusted proxies configured the socket address is used.
func ClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return c.RemoteIP()
}

// UserAgent returns the User-Agent header or "Unknown"
func UserAgent(c *gin.Context) string {
	if ua := c.Request.UserAgent(); ua != "" {
		return ua
	}
	return "Unknown"
}
