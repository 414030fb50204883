package middleware

import (
	"net/http"
	"strings"
	"time"

	"linktex-backend/internal/model"
	"linktex-backend/pkg/database"
	"linktex-backend/pkg/jwtutil"
	"linktex-backend/pkg/logger"
	"linktex-backend/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthMiddleware validates the JWT token from the Authorization header
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		// Get the Authorization header
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Error("Missing Authorization header")
			prometheus.RecordAuthError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
		}

		// Check if it's a Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Error("Invalid Authorization header format")
			prometheus.RecordAuthError("invalid_auth_format")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
		}

		// Extract the token
		tokenString := parts[1]

		// Validate the token
		claims, err := jwtutil.ValidateToken(tokenString)
		if err != nil {
			log.Error("Invalid JWT token", zap.Error(err))
			prometheus.RecordAuthError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}

		// Store user info in context for later use
		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("company_id", claims.CompanyID)
		c.Set("company_name", claims.CompanyName)
		c.Set("user_role", claims.Role)

		return next(c)
	}
}

// RequireApproved re-reads the user's profile on every request and blocks
// anyone whose status is not "approved". Status lives in the database, not
// in the token, so an admin approving (or rejecting) a user takes effect
// on the user's next request without a new login.
func RequireApproved(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		userID, ok := c.Get("user_id").(uint)
		if !ok {
			log.Error("Failed to get user ID from context")
			prometheus.RecordAuthError("missing_user_context")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
		}

		defer prometheus.TrackDBOperation("query")(time.Now())
		var user model.User
		if result := database.GetDB().First(&user, userID); result.Error != nil {
			log.Error("User profile not found", zap.Uint("user_id", userID), zap.Error(result.Error))
			prometheus.RecordAuthError("profile_not_found")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user profile not found"})
		}

		if user.Status != model.StatusApproved {
			log.Warn("Access attempt by non-approved user",
				zap.Uint("user_id", user.ID),
				zap.String("status", user.Status))
			prometheus.RecordAuthError("not_approved")
			if user.Status == model.StatusPending {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "your account is pending approval by a company admin"})
			}
			return c.JSON(http.StatusForbidden, echo.Map{"error": "your account has been rejected"})
		}

		// Refresh role and company from the profile: promotions and
		// demotions also apply on the next request.
		c.Set("user_role", user.Role)
		c.Set("company_id", user.CompanyID)
		c.Set("current_user", &user)

		return next(c)
	}
}

// RequireAdmin restricts a route to company admins
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return requireRole(model.RoleAdmin, next)
}

// RequireOperario restricts a route to operators
func RequireOperario(next echo.HandlerFunc) echo.HandlerFunc {
	return requireRole(model.RoleOperario, next)
}

func requireRole(role string, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userRole, _ := c.Get("user_role").(string)
		if userRole != role {
			logger.FromContext(c).Warn("Access denied for role",
				zap.String("required", role),
				zap.String("actual", userRole))
			prometheus.RecordAuthError("role_denied")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "you do not have permission to access this resource"})
		}
		return next(c)
	}
}
