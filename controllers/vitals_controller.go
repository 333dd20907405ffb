package controllers

import (
	"strconv"
	"vitalwatch/middleware"
	"vitalwatch/models"
	"vitalwatch/services"
	"vitalwatch/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type VitalsController struct {
	vitalsService *services.VitalsService
}

func NewVitalsController(vitalsService *services.VitalsService) *VitalsController {
	return &VitalsController{
		vitalsService: vitalsService,
	}
}

// =================== INGESTION ===================

// IngestReading accepts one reading from a device or the simulator.
func (vc *VitalsController) IngestReading(c *gin.Context) {
	var req models.CreateVitalReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	reading, err := vc.vitalsService.IngestReading(c.Request.Context(), req)
	if err != nil {
		logrus.Errorf("Ingest reading failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Reading ingested successfully", reading)
}

// IngestBulk accepts a batch of readings. Each is processed independently;
// the response reports per-reading outcomes.
func (vc *VitalsController) IngestBulk(c *gin.Context) {
	var req models.BulkVitalReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}
	if len(req.Readings) == 0 {
		utils.BadRequestResponse(c, "No readings provided")
		return
	}

	results := vc.vitalsService.IngestBulk(c.Request.Context(), req)

	accepted := 0
	for _, result := range results {
		if result.Accepted {
			accepted++
		}
	}

	utils.SuccessResponse(c, "Bulk ingestion processed", gin.H{
		"accepted": accepted,
		"rejected": len(results) - accepted,
		"results":  results,
	})
}

// =================== READS ===================

// GetReadings returns a patient's readings, optionally filtered by type and
// date range.
func (vc *VitalsController) GetReadings(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	patientID := c.Param("patientId")

	var query models.VitalReadingQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequestResponse(c, "Invalid query parameters")
		return
	}

	readings, err := vc.vitalsService.GetReadings(c.Request.Context(), identity, patientID, query)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Readings retrieved successfully", readings, &models.MetaData{
		Count: len(readings),
	})
}

// GetLatest returns the most recent reading of each metric for a patient.
func (vc *VitalsController) GetLatest(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	latest, err := vc.vitalsService.GetLatest(c.Request.Context(), identity, c.Param("patientId"))
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Latest readings retrieved successfully", latest)
}

// GetAbnormal returns a patient's abnormal readings.
func (vc *VitalsController) GetAbnormal(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	readings, err := vc.vitalsService.GetAbnormal(c.Request.Context(), identity, c.Param("patientId"), limit)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Abnormal readings retrieved successfully", readings, &models.MetaData{
		Count: len(readings),
	})
}

// GetReading returns a single reading by ID.
func (vc *VitalsController) GetReading(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	reading, err := vc.vitalsService.GetReading(c.Request.Context(), identity, c.Param("readingId"))
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Reading retrieved successfully", reading)
}

// MarkReviewed records that a clinician reviewed the reading.
func (vc *VitalsController) MarkReviewed(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	if err := vc.vitalsService.MarkReviewed(c.Request.Context(), identity, c.Param("readingId")); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Reading marked as reviewed", nil)
}
