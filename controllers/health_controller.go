package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"
	"vitalwatch/models"
	"vitalwatch/services"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const serviceVersion = "1.0.0"

type HealthController struct {
	mongoClient         *mongo.Client
	redisClient         *redis.Client
	notificationService *services.NotificationService
	startTime           time.Time
}

func NewHealthController(mongoClient *mongo.Client, redisClient *redis.Client, notificationService *services.NotificationService) *HealthController {
	return &HealthController{
		mongoClient:         mongoClient,
		redisClient:         redisClient,
		notificationService: notificationService,
		startTime:           time.Now(),
	}
}

// Health is the liveness probe. Always 200 while the process runs.
func (hc *HealthController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   serviceVersion,
		Uptime:    time.Since(hc.startTime).Round(time.Second).String(),
	})
}

// DetailedHealth probes the backing services. Degraded dependencies turn the
// overall status to "degraded" with a 503 so load balancers can react.
func (hc *HealthController) DetailedHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	checks := make(map[string]string)

	if err := hc.mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		checks["mongodb"] = "unreachable: " + err.Error()
		status = "degraded"
	} else {
		checks["mongodb"] = "ok"
	}

	if err := hc.redisClient.Ping(ctx).Err(); err != nil {
		checks["redis"] = "unreachable: " + err.Error()
		status = "degraded"
	} else {
		checks["redis"] = "ok"

		if depth, err := hc.notificationService.QueueDepth(ctx); err == nil {
			checks["notification_queue"] = "ok"
			c.Header("X-Notification-Queue-Depth", strconv.FormatInt(depth, 10))
		}
	}

	response := models.HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  checks,
		Version:   serviceVersion,
		Uptime:    time.Since(hc.startTime).Round(time.Second).String(),
	}

	if status != "ok" {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}
