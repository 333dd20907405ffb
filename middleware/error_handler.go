package middleware

import (
	"net/http"
	"runtime/debug"
	"time"
	"vitalwatch/models"
	"vitalwatch/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	environment string
	logger      *logrus.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(environment string, logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		environment: environment,
		logger:      logger,
	}
}

// Handle returns the error handling middleware
func (eh *ErrorHandler) Handle() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				eh.handlePanic(c, err)
			}
		}()

		c.Next()

		if len(c.Errors) > 0 {
			eh.handleGinErrors(c)
		}
	})
}

// handlePanic handles panic recovery
func (eh *ErrorHandler) handlePanic(c *gin.Context, err interface{}) {
	eh.logger.WithFields(logrus.Fields{
		"panic":      err,
		"stack":      string(debug.Stack()),
		"request_id": c.GetString("request_id"),
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"user_id":    c.GetString("userID"),
	}).Error("Panic recovered")

	response := models.ErrorResponse{
		Error:     "INTERNAL_ERROR",
		Message:   "Internal server error",
		Code:      "PANIC_RECOVERED",
		RequestID: c.GetString("request_id"),
		Timestamp: time.Now(),
	}

	if eh.environment == "development" {
		response.Details = map[string]interface{}{
			"panic": err,
			"stack": string(debug.Stack()),
		}
	}

	c.JSON(http.StatusInternalServerError, response)
	c.Abort()
}

// handleGinErrors handles errors added to gin context
func (eh *ErrorHandler) handleGinErrors(c *gin.Context) {
	lastError := c.Errors.Last()
	if lastError == nil {
		return
	}

	for _, ginErr := range c.Errors {
		eh.logError(c, ginErr.Err)
	}

	if c.Writer.Written() {
		return
	}

	eh.processError(c, lastError.Err)
}

// logError logs an error with context
func (eh *ErrorHandler) logError(c *gin.Context, err error) {
	fields := logrus.Fields{
		"error":      err.Error(),
		"request_id": c.GetString("request_id"),
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"user_id":    c.GetString("userID"),
		"ip":         c.ClientIP(),
	}

	if serviceErr, ok := utils.GetServiceError(err); ok && serviceErr.StatusCode < 500 {
		eh.logger.WithFields(fields).Warn("Client error")
		return
	}
	eh.logger.WithFields(fields).Error("Server error")
}

// processError maps an error to the HTTP response.
func (eh *ErrorHandler) processError(c *gin.Context, err error) {
	requestID := c.GetString("request_id")

	if serviceErr, ok := utils.GetServiceError(err); ok {
		status := serviceErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		response := models.ErrorResponse{
			Error:     serviceErr.Code,
			Message:   serviceErr.Message,
			Code:      serviceErr.Code,
			RequestID: requestID,
			Timestamp: time.Now(),
		}
		if serviceErr.Details != "" {
			response.Details = map[string]interface{}{"details": serviceErr.Details}
		}
		c.JSON(status, response)
		return
	}

	if eh.isMongoError(err) {
		eh.handleMongoError(c, err, requestID)
		return
	}

	eh.handleGenericError(c, err, requestID)
}

func (eh *ErrorHandler) isMongoError(err error) bool {
	return mongo.IsDuplicateKeyError(err) ||
		err == mongo.ErrNoDocuments ||
		mongo.IsTimeout(err) ||
		mongo.IsNetworkError(err)
}

// handleMongoError handles MongoDB errors
func (eh *ErrorHandler) handleMongoError(c *gin.Context, err error, requestID string) {
	switch {
	case mongo.IsDuplicateKeyError(err):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:     "CONFLICT",
			Message:   "Resource already exists",
			Code:      "DUPLICATE_RESOURCE",
			RequestID: requestID,
			Timestamp: time.Now(),
		})

	case err == mongo.ErrNoDocuments:
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:     "NOT_FOUND",
			Message:   "Resource not found",
			Code:      "RESOURCE_NOT_FOUND",
			RequestID: requestID,
			Timestamp: time.Now(),
		})

	case mongo.IsTimeout(err):
		c.JSON(http.StatusGatewayTimeout, models.ErrorResponse{
			Error:     "TIMEOUT",
			Message:   "Database operation timed out",
			Code:      "DATABASE_TIMEOUT",
			RequestID: requestID,
			Timestamp: time.Now(),
		})

	default:
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:     "SERVICE_UNAVAILABLE",
			Message:   "Database connection error",
			Code:      "DATABASE_CONNECTION_ERROR",
			RequestID: requestID,
			Timestamp: time.Now(),
		})
	}
}

// handleGenericError handles unknown errors
func (eh *ErrorHandler) handleGenericError(c *gin.Context, err error, requestID string) {
	response := models.ErrorResponse{
		Error:     "INTERNAL_ERROR",
		Message:   "An unexpected error occurred",
		Code:      "UNKNOWN_ERROR",
		RequestID: requestID,
		Timestamp: time.Now(),
	}

	if eh.environment == "development" {
		response.Details = map[string]interface{}{
			"original_error": err.Error(),
		}
	}

	c.JSON(http.StatusInternalServerError, response)
}

// AbortWithError aborts the request with an error
func AbortWithError(c *gin.Context, statusCode int, errorType, message, code string) {
	response := models.ErrorResponse{
		Error:     errorType,
		Message:   message,
		Code:      code,
		RequestID: c.GetString("request_id"),
		Timestamp: time.Now(),
	}
	c.JSON(statusCode, response)
	c.Abort()
}

// Helper functions for common errors

// NotFound responds with 404 error
func NotFound(c *gin.Context, message string) {
	AbortWithError(c, http.StatusNotFound, "NOT_FOUND", message, "RESOURCE_NOT_FOUND")
}

// BadRequest responds with 400 error
func BadRequest(c *gin.Context, message string) {
	AbortWithError(c, http.StatusBadRequest, "BAD_REQUEST", message, "INVALID_REQUEST")
}

// Unauthorized responds with 401 error
func Unauthorized(c *gin.Context, message string) {
	AbortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", message, "AUTHENTICATION_REQUIRED")
}

// Forbidden responds with 403 error
func Forbidden(c *gin.Context, message string) {
	AbortWithError(c, http.StatusForbidden, "FORBIDDEN", message, "INSUFFICIENT_PERMISSIONS")
}

// InternalError responds with 500 error
func InternalError(c *gin.Context, message string) {
	AbortWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", message, "INTERNAL_SERVER_ERROR")
}
