package controllers

import (
	"strconv"
	"vitalwatch/middleware"
	"vitalwatch/models"
	"vitalwatch/services"
	"vitalwatch/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
)

type PatientController struct {
	patientService *services.PatientService
}

func NewPatientController(patientService *services.PatientService) *PatientController {
	return &PatientController{
		patientService: patientService,
	}
}

// CreatePatient registers a new monitored patient.
func (pc *PatientController) CreatePatient(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	patient, err := pc.patientService.CreatePatient(c.Request.Context(), identity, req)
	if err != nil {
		logrus.Errorf("Create patient failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Patient created successfully", patient)
}

// GetPatient returns one patient by ID.
func (pc *PatientController) GetPatient(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	patient, err := pc.patientService.GetPatient(c.Request.Context(), identity, c.Param("patientId"))
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Patient retrieved successfully", patient)
}

// ListPatients lists the patients the caller may observe.
func (pc *PatientController) ListPatients(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	patients, err := pc.patientService.ListPatients(c.Request.Context(), identity, limit, offset)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Patients retrieved successfully", patients, &models.MetaData{
		Count: len(patients),
	})
}

// UpdatePatient applies a partial demographic update.
func (pc *PatientController) UpdatePatient(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var update bson.M
	if err := c.ShouldBindJSON(&update); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	patient, err := pc.patientService.UpdatePatient(c.Request.Context(), identity, c.Param("patientId"), update)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Patient updated successfully", patient)
}

// =================== MONITORING SETTINGS ===================

// GetMonitoringSettings returns a patient's per-metric thresholds.
func (pc *PatientController) GetMonitoringSettings(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	settings, err := pc.patientService.GetMonitoringSettings(c.Request.Context(), identity, c.Param("patientId"))
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Monitoring settings retrieved successfully", settings)
}

// UpdateMonitoringSettings replaces a patient's monitoring settings. The new
// thresholds apply from the next reading onward.
func (pc *PatientController) UpdateMonitoringSettings(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.UpdateMonitoringSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	settings, err := pc.patientService.UpdateMonitoringSettings(c.Request.Context(), identity, c.Param("patientId"), req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Monitoring settings updated successfully", settings)
}
