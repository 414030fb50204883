package handler

import (
	"net/http"
	"strconv"
	"time"

	"linktex-backend/internal/model"
	"linktex-backend/pkg/database"
	"linktex-backend/pkg/logger"
	"linktex-backend/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// companyUserFromParam resolves the :id route param to a user inside the
// admin's own company. Cross-company access is a 404, not a 403, so ids
// cannot be probed.
func companyUserFromParam(c echo.Context) (*model.User, error) {
	companyID, _ := c.Get("company_id").(uint)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	var user model.User
	result := database.GetDB().Where("company_id = ?", companyID).First(&user, uint(id))
	if result.Error != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return &user, nil
}

// ListOperarios returns all users of the admin's company grouped by
// approval status
func ListOperarios(c echo.Context) error {
	log := logger.FromContext(c)
	companyID, _ := c.Get("company_id").(uint)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var users []model.User
	if result := database.GetDB().Where("company_id = ?", companyID).Order("created_at").Find(&users); result.Error != nil {
		log.Error("Failed to list company users", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load users"})
	}

	grouped := echo.Map{
		"pending":  []model.User{},
		"approved": []model.User{},
		"rejected": []model.User{},
		"admins":   []model.User{},
	}
	for _, user := range users {
		switch {
		case user.Role == model.RoleAdmin:
			grouped["admins"] = append(grouped["admins"].([]model.User), user)
		case user.Status == model.StatusPending:
			grouped["pending"] = append(grouped["pending"].([]model.User), user)
		case user.Status == model.StatusApproved:
			grouped["approved"] = append(grouped["approved"].([]model.User), user)
		case user.Status == model.StatusRejected:
			grouped["rejected"] = append(grouped["rejected"].([]model.User), user)
		}
	}

	return c.JSON(http.StatusOK, grouped)
}

// ApproveOperario grants a pending or rejected operator access to the
// portal. The change applies on the operator's next request: the approval
// gate reads status from the database, not from the token.
func ApproveOperario(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordApproval("approve")

	user, err := companyUserFromParam(c)
	if err != nil {
		return err
	}

	if user.Role == model.RoleAdmin {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "admins do not need approval"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := database.GetDB().Model(user).Update("status", model.StatusApproved); result.Error != nil {
		log.Error("Failed to approve operario", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to approve user"})
	}

	log.Info("Operario approved", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "operario approved", "user": user})
}

// RejectOperario revokes or denies an operator's access
func RejectOperario(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordApproval("reject")

	user, err := companyUserFromParam(c)
	if err != nil {
		return err
	}

	if user.Role == model.RoleAdmin {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "demote the admin before rejecting"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := database.GetDB().Model(user).Update("status", model.StatusRejected); result.Error != nil {
		log.Error("Failed to reject operario", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reject user"})
	}

	log.Info("Operario rejected", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "operario rejected", "user": user})
}

// PromoteOperario turns an approved operator into a company admin
func PromoteOperario(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordApproval("promote")

	user, err := companyUserFromParam(c)
	if err != nil {
		return err
	}

	if user.Role == model.RoleAdmin {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user is already an admin"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	updates := map[string]interface{}{"role": model.RoleAdmin, "status": model.StatusApproved}
	if result := database.GetDB().Model(user).Updates(updates); result.Error != nil {
		log.Error("Failed to promote operario", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to promote user"})
	}

	log.Info("Operario promoted to admin", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "user promoted to admin", "user": user})
}

// DemoteAdmin turns an admin back into an operator. The last admin of a
// company cannot be demoted.
func DemoteAdmin(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordApproval("demote")

	user, err := companyUserFromParam(c)
	if err != nil {
		return err
	}

	if user.Role != model.RoleAdmin {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user is not an admin"})
	}

	var adminCount int64
	database.GetDB().Model(&model.User{}).
		Where("company_id = ? AND role = ?", user.CompanyID, model.RoleAdmin).
		Count(&adminCount)
	if adminCount <= 1 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "cannot demote the only admin of the company"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	updates := map[string]interface{}{"role": model.RoleOperario, "status": model.StatusApproved}
	if result := database.GetDB().Model(user).Updates(updates); result.Error != nil {
		log.Error("Failed to demote admin", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to demote user"})
	}

	log.Info("Admin demoted to operario", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "admin demoted to operario", "user": user})
}

// DeleteUser removes a user from the company. The user's work records are
// audit history and are deliberately left untouched.
func DeleteUser(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordApproval("delete")

	user, err := companyUserFromParam(c)
	if err != nil {
		return err
	}

	actorID, _ := c.Get("user_id").(uint)
	if user.ID == actorID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "you cannot delete your own account"})
	}

	if user.Role == model.RoleAdmin {
		var adminCount int64
		database.GetDB().Model(&model.User{}).
			Where("company_id = ? AND role = ?", user.CompanyID, model.RoleAdmin).
			Count(&adminCount)
		if adminCount <= 1 {
			return c.JSON(http.StatusConflict, echo.Map{"error": "cannot delete the only admin of the company"})
		}
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := database.GetDB().Delete(user); result.Error != nil {
		log.Error("Failed to delete user", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete user"})
	}

	log.Info("User deleted", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "user deleted"})
}
