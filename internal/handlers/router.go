package handlers

import (
	"github.com/crewhire/onboarding-backend/internal/middleware"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/pkg/jwt"
	"github.com/gin-gonic/gin"
)

// Handlers groups every HTTP handler of the API
type Handlers struct {
	Auth          *AuthHandler
	Onboarding    *OnboardingHandler
	Identity      *IdentityHandler
	Documents     *DocumentHandler
	Approvals     *ApprovalHandler
	Staff         *StaffHandler
	Organization  *OrganizationHandler
	Deactivations *DeactivationHandler
	Dashboard     *DashboardHandler
}

// RegisterRoutes mounts the API under group (normally /api/v1)
func RegisterRoutes(v1 *gin.RouterGroup, h Handlers, jwtService *jwt.Service) {
	staffAuth := middleware.AuthMiddleware(jwtService)
	candidateAuth := middleware.CandidateAuthMiddleware(jwtService)

	adminOnly := middleware.RequireRole(models.RoleSuperAdmin)
	managers := middleware.RequireRole(models.RoleSuperAdmin, models.RoleStoreManager)
	approvers := middleware.RequireRole(models.RoleSuperAdmin, models.RoleFieldCoach)

	auth := v1.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.RefreshToken)
		auth.POST("/logout", staffAuth, h.Auth.Logout)
		auth.GET("/me", staffAuth, h.Auth.Me)
		auth.POST("/change-password", staffAuth, h.Auth.ChangePassword)
	}

	onboarding := v1.Group("/onboarding")
	{
		// Candidate, before a token exists
		onboarding.POST("/send-otp", h.Onboarding.SendOTP)
		onboarding.POST("/verify-otp", h.Onboarding.VerifyOTP)
		onboarding.POST("/resume", h.Identity.Resume)

		// Candidate token
		onboarding.POST("/send-email-otp", candidateAuth, h.Onboarding.SendEmailOTP)
		onboarding.POST("/verify-email-otp", candidateAuth, h.Onboarding.VerifyEmailOTP)
		onboarding.GET("/draft/:phone", candidateAuth, h.Onboarding.GetDraft)
		onboarding.POST("/draft", candidateAuth, h.Onboarding.SaveDraft)
		onboarding.POST("/verify-pan", candidateAuth, h.Identity.VerifyPAN)
		onboarding.POST("/verify-aadhaar/initiate", candidateAuth, h.Identity.InitiateAadhaar)
		onboarding.POST("/verify-aadhaar/status", candidateAuth, h.Identity.AadhaarStatus)
		onboarding.POST("/:id/upload", candidateAuth, h.Documents.Upload)
		onboarding.POST("/:id/submit", candidateAuth, h.Onboarding.Submit)

		// Emailed approval links; the token is the credential
		onboarding.GET("/:id/check-token", h.Approvals.CheckToken)
		onboarding.GET("/:id/approve-with-token", h.Approvals.Approve)
		onboarding.GET("/:id/reject-with-token", h.Approvals.Reject)

		// Staff
		onboarding.GET("", staffAuth, h.Onboarding.List)
		onboarding.GET("/:id", staffAuth, h.Onboarding.Get)
		onboarding.GET("/:id/documents", staffAuth, h.Documents.List)
		onboarding.GET("/:id/documents/:name", staffAuth, h.Documents.Download)
		onboarding.POST("/:id/request-approval", staffAuth, managers, h.Approvals.RequestApproval)
		onboarding.POST("/:id/activate", staffAuth, h.Onboarding.Activate)
	}

	users := v1.Group("/admin/users", staffAuth, adminOnly)
	{
		users.POST("", h.Staff.CreateUser)
		users.GET("", h.Staff.ListUsers)
		users.GET("/:id", h.Staff.GetUser)
		users.PUT("/:id", h.Staff.UpdateUser)
		users.DELETE("/:id", h.Staff.DeleteUser)
	}

	outlets := v1.Group("/outlets", staffAuth)
	{
		outlets.GET("", h.Organization.ListOutlets)
		outlets.GET("/:code", h.Organization.GetOutlet)
		outlets.POST("", adminOnly, h.Organization.CreateOutlet)
		outlets.PUT("/:code", adminOnly, h.Organization.UpdateOutlet)
		outlets.DELETE("/:code", adminOnly, h.Organization.DeleteOutlet)
	}

	roles := v1.Group("/roles", staffAuth)
	{
		roles.GET("", h.Organization.ListRoles)
		roles.GET("/:id", h.Organization.GetRole)
		roles.POST("", adminOnly, h.Organization.CreateRole)
		roles.PUT("/:id", adminOnly, h.Organization.UpdateRole)
		roles.DELETE("/:id", adminOnly, h.Organization.DeleteRole)
	}

	deactivations := v1.Group("/deactivation-requests", staffAuth)
	{
		deactivations.GET("", h.Deactivations.List)
		deactivations.POST("", managers, h.Deactivations.Create)
		deactivations.POST("/:id/resolve", approvers, h.Deactivations.Resolve)
	}

	v1.GET("/dashboard/stats", staffAuth, h.Dashboard.Stats)
}
