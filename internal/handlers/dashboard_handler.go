package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/crewhire/onboarding-backend/internal/middleware"
	"github.com/crewhire/onboarding-backend/internal/services"
	"github.com/crewhire/onboarding-backend/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DashboardHandler serves the staff dashboard
type DashboardHandler struct {
	dashboard *services.DashboardService
	logger    *logrus.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboard *services.DashboardService, logger *logrus.Logger) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, logger: logger}
}

// Stats handles GET /api/v1/dashboard/stats
func (h *DashboardHandler) Stats(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	stats, err := h.dashboard.Stats(c.Request.Context(), userCtx.Actor())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HealthCheck handles GET /health
func HealthCheck(version string, db database.DB, sessions *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		body := gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"redis":     "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		}

		if err := db.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["database"] = "unhealthy"
		}
		if err := sessions.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["redis"] = "unhealthy"
		}

		c.JSON(status, body)
	}
}
