package main

import (
	"linktex-backend/internal/handler"
	"linktex-backend/internal/middleware"
	"linktex-backend/pkg/config"
	"linktex-backend/pkg/database"
	"linktex-backend/pkg/jwtutil"
	"linktex-backend/pkg/logger"
	"linktex-backend/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting linktex backend...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	if err := database.Initialize(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utility initialized")

	// Password reset tokens expire per config
	handler.ResetTokenTTL = cfg.Reset.TokenTTL

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover()) // Add recovery middleware
	e.Use(echomiddleware.CORS())    // Add CORS middleware
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Authentication routes - these don't belong under /api since they're for getting access to the API
	auth := e.Group("/auth")
	auth.POST("/register", handler.RegisterCompany)
	auth.POST("/register-operario", handler.RegisterOperario)
	auth.POST("/login", handler.Login)
	auth.POST("/logout", handler.Logout)
	auth.POST("/password-reset", handler.RequestPasswordReset)
	auth.POST("/password-reset/confirm", handler.ConfirmPasswordReset)

	// API routes - all require a valid token
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	// Profile routes only need a valid token, not an approved status: a
	// pending operator polls their own profile to see the status change
	users := api.Group("/users")
	users.GET("/profile", handler.GetProfile)
	users.PATCH("/profile", handler.UpdateProfile)
	users.POST("/change-password", handler.ChangePassword)

	// Everything below requires an approved account
	portal := api.Group("")
	portal.Use(middleware.RequireApproved)

	// Company and personnel management - admin only
	admin := portal.Group("")
	admin.Use(middleware.RequireAdmin)
	admin.GET("/company", handler.GetCompany)

	operarios := admin.Group("/operarios")
	operarios.GET("", handler.ListOperarios)
	operarios.POST("/:id/approve", handler.ApproveOperario)
	operarios.POST("/:id/reject", handler.RejectOperario)
	operarios.POST("/:id/promote", handler.PromoteOperario)
	operarios.POST("/:id/demote", handler.DemoteAdmin)
	operarios.DELETE("/:id", handler.DeleteUser)

	// Product catalog - admin only
	products := admin.Group("/products")
	products.GET("", handler.ListProducts)
	products.POST("", handler.CreateProduct)
	products.GET("/:id", handler.GetProduct)
	products.PATCH("/:id", handler.UpdateProduct)
	products.PUT("/:id/processes", handler.UpdateProcesses)
	products.DELETE("/:id", handler.DeleteProduct)
	products.GET("/:id/variants", handler.ListVariants)
	products.POST("/:id/variants", handler.CreateVariant)

	variants := admin.Group("/variants")
	variants.PATCH("/:id", handler.UpdateVariant)
	variants.DELETE("/:id", handler.DeleteVariant)

	// Work history - admins see the whole company and can export it
	records := admin.Group("/records")
	records.GET("", handler.ListWorkRecords)
	records.GET("/export", handler.ExportWorkRecords)

	// Work submission - operators record completed work
	work := portal.Group("/work")
	work.Use(middleware.RequireOperario)
	work.GET("/batches", handler.ListOpenBatches)
	work.POST("", handler.SubmitWork)
	work.GET("/records", handler.ListMyWorkRecords)

	// Get server port from configuration
	port := cfg.Server.Port

	// Start server
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
