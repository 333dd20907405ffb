package routes

import (
	"vitalwatch/controllers"
	"vitalwatch/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// SetupAlertRoutes configures alert lifecycle routes
func SetupAlertRoutes(router *gin.RouterGroup, alertController *controllers.AlertController, redis *redis.Client) {
	alerts := router.Group("/alerts")
	{
		alerts.GET("", alertController.GetAlerts)
		alerts.POST("", alertController.CreateAlert)
		alerts.GET("/stats", alertController.GetStats)
		alerts.GET("/:alertId", alertController.GetAlert)

		// Lifecycle transitions
		alerts.POST("/:alertId/acknowledge", alertController.Acknowledge)
		alerts.POST("/:alertId/resolve", alertController.Resolve)
		alerts.POST("/:alertId/escalate", alertController.Escalate)
		alerts.POST("/:alertId/notifications/read", alertController.MarkNotificationRead)

		// Dispatching emergency services gets its own tight budget
		alerts.POST("/:alertId/emergency-contact", middleware.EmergencyRateLimit(redis), alertController.ContactEmergencyServices)
	}

	// Per-patient alert history
	router.GET("/patients/:patientId/alerts", alertController.GetPatientAlerts)
}
