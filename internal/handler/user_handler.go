package handler

import (
	"net/http"
	"time"

	"linktex-backend/internal/model"
	"linktex-backend/pkg/database"
	"linktex-backend/pkg/logger"
	"linktex-backend/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// currentUser returns the profile loaded by the approval middleware,
// falling back to a fresh read
func currentUser(c echo.Context) (*model.User, error) {
	if user, ok := c.Get("current_user").(*model.User); ok {
		return user, nil
	}

	userID, ok := c.Get("user_id").(uint)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var user model.User
	if result := database.GetDB().First(&user, userID); result.Error != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "user profile not found")
	}
	return &user, nil
}

// GetProfile returns the authenticated user's profile with its current
// status, which is what the client polls after registering
func GetProfile(c echo.Context) error {
	log := logger.FromContext(c)

	userID, ok := c.Get("user_id").(uint)
	if !ok {
		prometheus.RecordAuthError("missing_user_context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	if result := database.GetDB().First(&user, userID); result.Error != nil {
		log.Error("User profile not found", zap.Uint("user_id", userID))
		prometheus.RecordAuthError("profile_not_found")
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user profile not found"})
	}

	return c.JSON(http.StatusOK, user)
}

// UpdateProfile updates the authenticated user's contact details
func UpdateProfile(c echo.Context) error {
	log := logger.FromContext(c)

	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req struct {
		FirstName   *string `json:"first_name"`
		LastName    *string `json:"last_name"`
		PhoneNumber *string `json:"phone_number"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse profile update", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.PhoneNumber != nil {
		updates["phone_number"] = *req.PhoneNumber
	}

	if len(updates) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := database.GetDB().Model(user).Updates(updates); result.Error != nil {
		log.Error("Failed to update profile", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update profile"})
	}

	log.Info("Profile updated", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, user)
}

// ChangePassword verifies the current password and replaces it
func ChangePassword(c echo.Context) error {
	log := logger.FromContext(c)

	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}

	if err := c.Bind(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "current and new password are required"})
	}

	if len(req.NewPassword) < minPasswordLength {
		prometheus.RecordAuthError("weak_password")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 6 characters"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "current password is incorrect"})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to change password"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := database.GetDB().Model(user).Update("password", string(hashedPassword)); result.Error != nil {
		log.Error("Failed to change password", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to change password"})
	}

	log.Info("Password changed", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}

// GetCompany returns the admin's company, including the join code new
// operators need to register
func GetCompany(c echo.Context) error {
	log := logger.FromContext(c)

	companyID, ok := c.Get("company_id").(uint)
	if !ok || companyID == 0 {
		prometheus.RecordAuthError("missing_company_context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "company context required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var company model.Company
	if result := database.GetDB().First(&company, companyID); result.Error != nil {
		log.Error("Company not found", zap.Uint("company_id", companyID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "company not found"})
	}

	var userCount int64
	database.GetDB().Model(&model.User{}).Where("company_id = ?", companyID).Count(&userCount)

	return c.JSON(http.StatusOK, echo.Map{
		"company":    company,
		"user_count": userCount,
	})
}
