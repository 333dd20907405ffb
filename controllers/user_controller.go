package controllers

import (
	"strconv"
	"vitalwatch/middleware"
	"vitalwatch/models"
	"vitalwatch/services"
	"vitalwatch/utils"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	userService *services.UserService
}

func NewUserController(userService *services.UserService) *UserController {
	return &UserController{
		userService: userService,
	}
}

// GetMe returns the caller's own account.
func (uc *UserController) GetMe(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	user, err := uc.userService.GetUser(c.Request.Context(), identity, identity.UserID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "User retrieved successfully", user)
}

// GetUser returns a user by ID.
func (uc *UserController) GetUser(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	user, err := uc.userService.GetUser(c.Request.Context(), identity, c.Param("userId"))
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "User retrieved successfully", user)
}

// ListByRole lists users holding a role.
func (uc *UserController) ListByRole(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	role := c.Query("role")
	if role == "" {
		utils.BadRequestResponse(c, "Role query parameter is required")
		return
	}

	users, err := uc.userService.ListByRole(c.Request.Context(), identity, role)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Users retrieved successfully", users, &models.MetaData{
		Count: len(users),
	})
}

// SearchUsers searches users by name or email.
func (uc *UserController) SearchUsers(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	query := c.Query("q")
	if query == "" {
		utils.BadRequestResponse(c, "Search query is required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	users, err := uc.userService.SearchUsers(c.Request.Context(), identity, query, limit)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Users retrieved successfully", users)
}

// AssignPatient grants a user observation of a patient.
func (uc *UserController) AssignPatient(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	err := uc.userService.AssignPatient(c.Request.Context(), identity, c.Param("userId"), c.Param("patientId"))
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Patient assigned successfully", nil)
}

// UnassignPatient revokes a user's assignment to a patient.
func (uc *UserController) UnassignPatient(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	err := uc.userService.UnassignPatient(c.Request.Context(), identity, c.Param("userId"), c.Param("patientId"))
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Patient unassigned successfully", nil)
}

// UpdateDeviceToken registers the caller's push token.
func (uc *UserController) UpdateDeviceToken(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req struct {
		DeviceToken string `json:"deviceToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Device token is required")
		return
	}

	if err := uc.userService.UpdateDeviceToken(c.Request.Context(), identity, req.DeviceToken); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Device token updated successfully", nil)
}

// UpdateNotificationPreferences replaces the caller's preferences.
func (uc *UserController) UpdateNotificationPreferences(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var prefs models.NotificationPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	if err := uc.userService.UpdateNotificationPreferences(c.Request.Context(), identity, prefs); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Notification preferences updated successfully", nil)
}

// DeactivateUser disables an account.
func (uc *UserController) DeactivateUser(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	if err := uc.userService.DeactivateUser(c.Request.Context(), identity, c.Param("userId")); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "User deactivated successfully", nil)
}
