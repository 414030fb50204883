package handler

import (
	"net/http"
	"time"

	"linktex-backend/internal/model"
	"linktex-backend/pkg/database"
	"linktex-backend/pkg/jwtutil"
	"linktex-backend/pkg/logger"
	"linktex-backend/prometheus"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// ResetTokenTTL is how long a password reset token stays redeemable.
// Overridden from config at startup.
var ResetTokenTTL = 2 * time.Hour

// RegisterCompany registers a new company together with its first admin
// user. Company and user are created in one transaction: there is never a
// window where the account exists without its profile, so no delayed
// retry is needed on first login.
func RegisterCompany(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.WithLabelValues("company").Inc()

	// Parse request
	var req struct {
		CompanyName string `json:"company_name"`
		Email       string `json:"email"`
		Password    string `json:"password"`
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
		PhoneNumber string `json:"phone_number"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.CompanyName == "" || req.Email == "" || req.Password == "" {
		log.Error("Invalid registration data",
			zap.String("email", req.Email),
			zap.Bool("password_provided", req.Password != ""))
		prometheus.RecordAuthError("incomplete_registration")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "company name, email and password are required"})
	}

	if len(req.Password) < minPasswordLength {
		prometheus.RecordAuthError("weak_password")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 6 characters"})
	}

	// Check if user already exists - track DB query
	defer prometheus.TrackDBOperation("query")(time.Now())
	var existingUser model.User
	if result := database.GetDB().Where("email = ?", req.Email).First(&existingUser); result.Error == nil {
		log.Error("User already exists", zap.String("email", req.Email))
		prometheus.RecordAuthError("email_already_exists")
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	company := model.Company{
		Name:     req.CompanyName,
		JoinCode: uuid.New().String(),
	}
	user := model.User{
		Email:       req.Email,
		Password:    string(hashedPassword),
		Role:        model.RoleAdmin,
		Status:      model.StatusApproved,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	}

	// Create company and admin user atomically
	defer prometheus.TrackDBOperation("insert")(time.Now())
	tx := database.GetDB().Begin()
	if tx.Error != nil {
		log.Error("Failed to begin transaction", zap.Error(tx.Error))
		prometheus.RecordAuthError("database_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	if result := tx.Create(&company); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to create company", zap.Error(result.Error))
		prometheus.RecordAuthError("company_creation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	user.CompanyID = company.ID
	if result := tx.Create(&user); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to create admin user", zap.Error(result.Error))
		prometheus.RecordAuthError("user_creation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	if err := tx.Commit().Error; err != nil {
		log.Error("Failed to commit registration transaction", zap.Error(err))
		prometheus.RecordAuthError("transaction_commit_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	log.Info("Company registered",
		zap.String("company", company.Name),
		zap.Uint("company_id", company.ID),
		zap.String("admin_email", user.Email))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Company registered successfully",
		"company": map[string]interface{}{
			"id":        company.ID,
			"name":      company.Name,
			"join_code": company.JoinCode,
		},
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

// RegisterOperario registers an operator against an existing company via
// its join code. The account starts as pending and stays locked out of
// the portal until an admin approves it.
func RegisterOperario(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.WithLabelValues("operario").Inc()

	var req struct {
		JoinCode    string `json:"join_code"`
		Email       string `json:"email"`
		Password    string `json:"password"`
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
		PhoneNumber string `json:"phone_number"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse operario registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.JoinCode == "" || req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		prometheus.RecordAuthError("incomplete_registration")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "join code, email, password and full name are required"})
	}

	if len(req.Password) < minPasswordLength {
		prometheus.RecordAuthError("weak_password")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 6 characters"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var company model.Company
	if result := database.GetDB().Where("join_code = ?", req.JoinCode).First(&company); result.Error != nil {
		log.Error("Unknown company join code", zap.String("join_code", req.JoinCode))
		prometheus.RecordAuthError("unknown_join_code")
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no company found for this join code"})
	}

	var existingUser model.User
	if result := database.GetDB().Where("email = ?", req.Email).First(&existingUser); result.Error == nil {
		log.Error("User already exists", zap.String("email", req.Email))
		prometheus.RecordAuthError("email_already_exists")
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	user := model.User{
		Email:       req.Email,
		Password:    string(hashedPassword),
		Role:        model.RoleOperario,
		Status:      model.StatusPending,
		CompanyID:   company.ID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&user); result.Error != nil {
		log.Error("Failed to create operario", zap.Error(result.Error))
		prometheus.RecordAuthError("user_creation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	log.Info("Operario registered, pending approval",
		zap.String("email", user.Email),
		zap.Uint("company_id", company.ID))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Registration received. An admin must approve your account before you can log in to the portal.",
		"user": map[string]interface{}{
			"id":     user.ID,
			"email":  user.Email,
			"role":   user.Role,
			"status": user.Status,
		},
	})
}

// Login authenticates a user and issues a JWT
func Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	// Find user in database - track DB operation duration
	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	if result := database.GetDB().Where("email = ?", req.Email).First(&user); result.Error != nil {
		log.Error("User not found", zap.String("email", req.Email))
		prometheus.RecordAuthError("user_not_found")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Error("Invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	var company model.Company
	companyName := ""
	if result := database.GetDB().Select("name").First(&company, user.CompanyID); result.Error == nil {
		companyName = company.Name
	}

	token, err := jwtutil.GenerateToken(user.Email, user.ID, user.CompanyID, companyName, user.Role)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	// Increment active tokens gauge
	prometheus.IncreaseActiveTokens()

	log.Info("User logged in",
		zap.String("email", user.Email),
		zap.Uint("company_id", user.CompanyID),
		zap.String("role", user.Role),
		zap.String("status", user.Status))

	// A pending or rejected user can authenticate but the approval gate
	// blocks every portal route; the status in the response lets the
	// client show the pending-approval screen.
	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user": map[string]interface{}{
			"id":         user.ID,
			"email":      user.Email,
			"role":       user.Role,
			"status":     user.Status,
			"company_id": user.CompanyID,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
		},
	})
}

// Logout invalidates nothing server side (tokens are stateless) but lets
// the metrics reflect the session ending
func Logout(c echo.Context) error {
	prometheus.DecreaseActiveTokens()
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// RequestPasswordReset issues a single-use reset token for the given
// email. The response is identical whether or not the email exists, so
// the endpoint cannot be used to probe for accounts.
func RequestPasswordReset(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Email string `json:"email"`
	}

	if err := c.Bind(&req); err != nil || req.Email == "" {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}

	const message = "If the email is registered, a reset link has been sent."

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	if result := database.GetDB().Where("email = ?", req.Email).First(&user); result.Error != nil {
		log.Info("Password reset requested for unknown email", zap.String("email", req.Email))
		return c.JSON(http.StatusOK, echo.Map{"message": message})
	}

	reset := model.PasswordReset{
		UserID:    user.ID,
		Token:     uuid.New().String(),
		ExpiresAt: time.Now().Add(ResetTokenTTL),
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&reset); result.Error != nil {
		log.Error("Failed to create password reset token", zap.Error(result.Error))
		prometheus.RecordAuthError("reset_creation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not process the request"})
	}

	// Token delivery (email) is out of scope for this service; downstream
	// tooling picks it up from the log in development.
	log.Info("Password reset token issued",
		zap.Uint("user_id", user.ID),
		zap.Time("expires_at", reset.ExpiresAt))

	return c.JSON(http.StatusOK, echo.Map{"message": message})
}

// ConfirmPasswordReset redeems a reset token and sets a new password
func ConfirmPasswordReset(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}

	if err := c.Bind(&req); err != nil || req.Token == "" || req.NewPassword == "" {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token and new password are required"})
	}

	if len(req.NewPassword) < minPasswordLength {
		prometheus.RecordAuthError("weak_password")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 6 characters"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var reset model.PasswordReset
	if result := database.GetDB().Where("token = ?", req.Token).First(&reset); result.Error != nil {
		prometheus.RecordAuthError("unknown_reset_token")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired reset token"})
	}

	if !reset.Valid(time.Now()) {
		prometheus.RecordAuthError("expired_reset_token")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired reset token"})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not reset password"})
	}

	// Consume the token and set the new password together
	tx := database.GetDB().Begin()
	if tx.Error != nil {
		prometheus.RecordAuthError("database_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	if result := tx.Model(&model.User{}).Where("id = ?", reset.UserID).
		Update("password", string(hashedPassword)); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to update password", zap.Error(result.Error))
		prometheus.RecordAuthError("password_update_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not reset password"})
	}

	if result := tx.Model(&reset).Update("used", true); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to consume reset token", zap.Error(result.Error))
		prometheus.RecordAuthError("reset_consume_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not reset password"})
	}

	if err := tx.Commit().Error; err != nil {
		log.Error("Failed to commit password reset", zap.Error(err))
		prometheus.RecordAuthError("transaction_commit_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not reset password"})
	}

	log.Info("Password reset completed", zap.Uint("user_id", reset.UserID))
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated, you can now log in"})
}

// MetricsHandler exposes the Prometheus metrics endpoint
func MetricsHandler(c echo.Context) error {
	handler := prometheus.GetPrometheusHandler()
	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}
