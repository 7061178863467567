package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crewhire/onboarding-backend/internal/config"
	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/crewhire/onboarding-backend/internal/handlers"
	"github.com/crewhire/onboarding-backend/internal/metrics"
	"github.com/crewhire/onboarding-backend/internal/middleware"
	"github.com/crewhire/onboarding-backend/internal/services"
	"github.com/crewhire/onboarding-backend/internal/session"
	"github.com/crewhire/onboarding-backend/pkg/jwt"
	"github.com/crewhire/onboarding-backend/pkg/kyc"
	"github.com/crewhire/onboarding-backend/pkg/mailer"
	"github.com/crewhire/onboarding-backend/pkg/sms"
	"github.com/crewhire/onboarding-backend/pkg/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting crew onboarding backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	ctx := context.Background()

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	redisClient := session.NewRedisClient(cfg.Redis)
	defer redisClient.Close()
	sessions := session.NewStore(redisClient, cfg.Redis.SessionTTL)
	if err := sessions.Ping(ctx); err != nil {
		logger.Fatalf("Failed to reach Redis: %v", err)
	}
	logger.Info("Redis session store ready")

	// Outbound integrations
	var smsGateway sms.SMSGateway
	if cfg.SMS.Mode == "production" {
		smsGateway = sms.NewTemplateGateway(sms.TemplateConfig{
			APIURL:     cfg.SMS.APIURL,
			APIKey:     cfg.SMS.APIKey,
			SenderID:   cfg.SMS.SenderID,
			TemplateID: cfg.SMS.Template,
		})
		logger.Info("SMS gateway initialized")
	} else {
		smsGateway = sms.NewDevGateway(logger)
		logger.Info("SMS gateway in development mode (no actual SMS will be sent)")
	}

	var mail mailer.Mailer
	if cfg.Email.Mode == "production" {
		sesMailer, err := mailer.NewSESMailer(ctx, mailer.Config{Region: cfg.Email.Region, From: cfg.Email.From})
		if err != nil {
			logger.Fatalf("Failed to initialize SES mailer: %v", err)
		}
		mail = sesMailer
	} else {
		mail = mailer.NewLogMailer(logger)
		logger.Info("Email in development mode (messages are logged)")
	}

	documentStore, err := storage.NewS3Store(ctx, storage.Config{
		Bucket:   cfg.Storage.Bucket,
		Region:   cfg.Storage.Region,
		Prefix:   cfg.Storage.Prefix,
		Endpoint: cfg.Storage.Endpoint,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize document storage: %v", err)
	}

	kycClient := kyc.NewClient(kyc.Config{
		BaseURL:  cfg.KYC.BaseURL,
		APIToken: cfg.KYC.APIToken,
		Timeout:  cfg.KYC.Timeout,
	})

	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
		cfg.JWT.CandidateExpiry,
	)

	// Repositories
	userRepository := database.NewUserRepository(db)
	refreshTokenRepository := database.NewRefreshTokenRepository(db)
	applicationRepository := database.NewApplicationRepository(db)
	approvalTokenRepository := database.NewApprovalTokenRepository(db)
	outletRepository := database.NewOutletRepository(db)
	roleRepository := database.NewRoleRepository(db)
	deactivationRepository := database.NewDeactivationRepository(db)
	documentRepository := database.NewDocumentRepository(db)

	// Services
	logger.Info("Initializing services...")
	auditService := services.NewAuditService(db, cfg.Security.EnableAuditLog)
	otpService := services.NewOTPService(db, cfg.OTP)
	rateLimitService := services.NewRateLimitService(db, services.RateLimitConfigFromOTP(cfg.OTP))
	scope := services.NewScopeResolver(outletRepository)

	authService := services.NewAuthService(userRepository, refreshTokenRepository, jwtService, cfg.Security.BcryptCost, logger)
	staffService := services.NewStaffService(userRepository, refreshTokenRepository, cfg.Security.BcryptCost)
	onboardingService := services.NewOnboardingService(services.OnboardingDeps{
		Applications: applicationRepository,
		OTP:          otpService,
		RateLimit:    rateLimitService,
		Audit:        auditService,
		SMS:          smsGateway,
		Mailer:       mail,
		JWT:          jwtService,
		Scope:        scope,
		DevMode:      cfg.SMS.Mode == "dev",
		Logger:       logger,
	})
	identityService := services.NewIdentityService(services.IdentityDeps{
		Vendor:       kycClient,
		Applications: applicationRepository,
		Sessions:     sessions,
		Audit:        auditService,
		JWT:          jwtService,
		FrontendURL:  cfg.Server.FrontendURL,
		Logger:       logger,
	})
	approvalService := services.NewApprovalService(services.ApprovalDeps{
		DB:           db,
		Applications: applicationRepository,
		Tokens:       approvalTokenRepository,
		Outlets:      outletRepository,
		Users:        userRepository,
		Scope:        scope,
		Mailer:       mail,
		Audit:        auditService,
		PublicURL:    cfg.Server.PublicURL,
		TokenTTL:     cfg.Approval.TokenTTL,
		Logger:       logger,
	})
	deactivationService := services.NewDeactivationService(db, applicationRepository, deactivationRepository, scope, auditService)
	dashboardService := services.NewDashboardService(applicationRepository, deactivationRepository, outletRepository, scope)
	documentService := services.NewDocumentService(applicationRepository, documentRepository, documentStore, scope, cfg.Security.MaxUploadBytes)
	organizationService := services.NewOrganizationService(outletRepository, roleRepository, userRepository, scope)

	cleanupService := services.NewCleanupService(otpService, rateLimitService, auditService, approvalTokenRepository, refreshTokenRepository, logger)
	if err := cleanupService.Start(); err != nil {
		logger.Fatalf("Failed to start cleanup service: %v", err)
	}
	logger.Info("Services initialized")

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		logger.Fatalf("Invalid TRUSTED_PROXIES: %v", err)
	}
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(middleware.RequestLogger(logger))
	}
	router.Use(metrics.Middleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	corsConfig.AllowMethods = cfg.CORS.AllowedMethods
	corsConfig.AllowHeaders = cfg.CORS.AllowedHeaders
	corsConfig.AllowCredentials = true
	if len(corsConfig.AllowOrigins) == 1 && corsConfig.AllowOrigins[0] == "*" {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", handlers.HealthCheck(version, db, sessions))
	router.GET("/metrics", metrics.Handler())

	handlers.RegisterRoutes(router.Group("/api/v1"), handlers.Handlers{
		Auth:          handlers.NewAuthHandler(authService, auditService, logger),
		Onboarding:    handlers.NewOnboardingHandler(onboardingService, logger),
		Identity:      handlers.NewIdentityHandler(identityService, logger),
		Documents:     handlers.NewDocumentHandler(documentService, logger),
		Approvals:     handlers.NewApprovalHandler(approvalService, logger),
		Staff:         handlers.NewStaffHandler(staffService, auditService, logger),
		Organization:  handlers.NewOrganizationHandler(organizationService, logger),
		Deactivations: handlers.NewDeactivationHandler(deactivationService, logger),
		Dashboard:     handlers.NewDashboardHandler(dashboardService, logger),
	}, jwtService)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // document uploads and vendor calls
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	logger.Info("Stopping cleanup service...")
	cleanupService.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
