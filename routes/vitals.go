package routes

import (
	"vitalwatch/controllers"
	"vitalwatch/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// SetupVitalsRoutes configures vital sign ingestion and query routes
func SetupVitalsRoutes(router *gin.RouterGroup, vitalsController *controllers.VitalsController, redis *redis.Client) {
	// Ingestion. Rate limited per device budget, not the global API budget.
	ingest := router.Group("/vitals")
	ingest.Use(middleware.IngestRateLimit(redis))
	{
		ingest.POST("", vitalsController.IngestReading)
		ingest.POST("/bulk", vitalsController.IngestBulk)
	}

	// Individual readings
	readings := router.Group("/vitals")
	{
		readings.GET("/:readingId", vitalsController.GetReading)
		readings.POST("/:readingId/review", vitalsController.MarkReviewed)
	}

	// Per-patient queries
	patients := router.Group("/patients/:patientId/vitals")
	{
		patients.GET("", vitalsController.GetReadings)
		patients.GET("/latest", vitalsController.GetLatest)
		patients.GET("/abnormal", vitalsController.GetAbnormal)
	}
}
