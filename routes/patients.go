package routes

import (
	"vitalwatch/controllers"
	"vitalwatch/middleware"

	"github.com/gin-gonic/gin"
)

// SetupPatientRoutes configures patient record and monitoring settings routes
func SetupPatientRoutes(router *gin.RouterGroup, patientController *controllers.PatientController, authMW *middleware.AuthMiddleware) {
	patients := router.Group("/patients")
	{
		patients.GET("", patientController.ListPatients)
		patients.POST("", patientController.CreatePatient)

		// Everything under a specific patient requires that the caller is
		// entitled to observe that patient.
		patient := patients.Group("/:patientId")
		patient.Use(authMW.RequirePatientAccess("patientId"))
		{
			patient.GET("", patientController.GetPatient)
			patient.PUT("", patientController.UpdatePatient)
			patient.GET("/monitoring", patientController.GetMonitoringSettings)
			patient.PUT("/monitoring", patientController.UpdateMonitoringSettings)
		}
	}
}
