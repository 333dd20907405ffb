package controllers

import (
	"strconv"
	"time"
	"vitalwatch/middleware"
	"vitalwatch/models"
	"vitalwatch/services"
	"vitalwatch/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AlertController struct {
	alertService *services.AlertService
}

func NewAlertController(alertService *services.AlertService) *AlertController {
	return &AlertController{
		alertService: alertService,
	}
}

// =================== QUERIES ===================

// GetAlerts lists open alerts visible to the caller.
func (ac *AlertController) GetAlerts(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var query models.AlertQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequestResponse(c, "Invalid query parameters")
		return
	}

	alerts, err := ac.alertService.GetAlerts(c.Request.Context(), identity, query)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Alerts retrieved successfully", alerts, &models.MetaData{
		Count: len(alerts),
	})
}

// GetAlert returns one alert by ID.
func (ac *AlertController) GetAlert(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	alert, err := ac.alertService.GetAlert(c.Request.Context(), identity, c.Param("alertId"))
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Alert retrieved successfully", alert)
}

// GetPatientAlerts lists a patient's alerts.
func (ac *AlertController) GetPatientAlerts(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var query models.AlertQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequestResponse(c, "Invalid query parameters")
		return
	}

	alerts, err := ac.alertService.GetPatientAlerts(c.Request.Context(), identity, c.Param("patientId"), query)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Alerts retrieved successfully", alerts, &models.MetaData{
		Count: len(alerts),
	})
}

// GetStats returns alert counts by status and by type over a trailing window.
func (ac *AlertController) GetStats(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 || days > 90 {
		days = 7
	}

	stats, err := ac.alertService.GetStats(c.Request.Context(), identity, time.Duration(days)*24*time.Hour)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Alert statistics retrieved successfully", stats)
}

// =================== CREATION ===================

// CreateAlert creates a manual alert (fall detected, emergency button).
func (ac *AlertController) CreateAlert(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	alert, err := ac.alertService.CreateAlert(c.Request.Context(), identity, req)
	if err != nil {
		logrus.Errorf("Create alert failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Alert created successfully", alert)
}

// =================== LIFECYCLE ===================

// Acknowledge moves an active alert to acknowledged.
func (ac *AlertController) Acknowledge(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	alert, err := ac.alertService.Acknowledge(c.Request.Context(), identity, c.Param("alertId"))
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Alert acknowledged", alert)
}

// Resolve terminally closes an alert.
func (ac *AlertController) Resolve(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.ResolveAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Resolution text is required")
		return
	}

	alert, err := ac.alertService.Resolve(c.Request.Context(), identity, c.Param("alertId"), req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Alert resolved", alert)
}

// Escalate raises an alert to escalated and forces critical severity.
func (ac *AlertController) Escalate(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	alert, err := ac.alertService.Escalate(c.Request.Context(), identity, c.Param("alertId"))
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Alert escalated", alert)
}

// ContactEmergencyServices records an emergency services dispatch.
func (ac *AlertController) ContactEmergencyServices(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.EmergencyContactRequest
	c.ShouldBindJSON(&req)

	alert, err := ac.alertService.ContactEmergencyServices(c.Request.Context(), identity, c.Param("alertId"), req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Emergency services contacted", alert)
}

// MarkNotificationRead marks the caller's notification entry as read.
func (ac *AlertController) MarkNotificationRead(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	if err := ac.alertService.MarkNotificationRead(c.Request.Context(), identity, c.Param("alertId")); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Notification marked as read", nil)
}
