package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"
	"vitalwatch/models"
	"vitalwatch/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AuthMiddleware struct {
	authService *services.AuthService
}

func NewAuthMiddleware(authService *services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// RequireAuth resolves the bearer token to an identity and stores it in the
// request context. Everything past this middleware operates on the identity
// alone; the token is never inspected again.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		token := am.extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:     "UNAUTHORIZED",
				Message:   "Authentication token required",
				Code:      "AUTH_TOKEN_REQUIRED",
				Timestamp: time.Now(),
			})
			c.Abort()
			return
		}

		identity, err := am.authService.ResolveToken(c.Request.Context(), token)
		if err != nil {
			logrus.Warnf("Token resolution failed: %v", err)
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:     "UNAUTHORIZED",
				Message:   "Invalid or expired authentication token",
				Code:      "AUTH_TOKEN_INVALID",
				Timestamp: time.Now(),
			})
			c.Abort()
			return
		}

		c.Set("identity", identity)
		c.Set("userID", identity.UserID)
		c.Set("userRole", identity.Role)

		go am.recordLogin(identity.UserID)

		c.Next()
	})
}

// RequireRole restricts a route to the given roles.
func (am *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:     "UNAUTHORIZED",
				Message:   "User not authenticated",
				Code:      "AUTH_IDENTITY_MISSING",
				Timestamp: time.Now(),
			})
			c.Abort()
			return
		}

		for _, role := range roles {
			if identity.Role == role {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Error:     "FORBIDDEN",
			Message:   "Insufficient permissions",
			Code:      "AUTH_INSUFFICIENT_PERMISSIONS",
			Timestamp: time.Now(),
		})
		c.Abort()
	})
}

// RequireCapability restricts a route to identities holding a capability.
// Fine-grained checks (per-patient visibility, state transitions) still live
// in the services; this gate only rejects the obviously unauthorized early.
func (am *AuthMiddleware) RequireCapability(capability string, check func(models.Permissions) bool) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok || !check(identity.Permissions) {
			c.JSON(http.StatusForbidden, models.ErrorResponse{
				Error:     "FORBIDDEN",
				Message:   "Missing capability: " + capability,
				Code:      "AUTH_CAPABILITY_MISSING",
				Timestamp: time.Now(),
			})
			c.Abort()
			return
		}
		c.Next()
	})
}

// RequirePatientAccess rejects requests whose :patientId path parameter names
// a patient the identity may not observe.
func (am *AuthMiddleware) RequirePatientAccess(param string) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:     "UNAUTHORIZED",
				Message:   "User not authenticated",
				Code:      "AUTH_IDENTITY_MISSING",
				Timestamp: time.Now(),
			})
			c.Abort()
			return
		}

		patientID := c.Param(param)
		if patientID == "" || !identity.CanObserve(patientID) {
			c.JSON(http.StatusForbidden, models.ErrorResponse{
				Error:     "FORBIDDEN",
				Message:   "Not authorized to observe this patient",
				Code:      "AUTH_PATIENT_ACCESS_DENIED",
				Timestamp: time.Now(),
			})
			c.Abort()
			return
		}

		c.Next()
	})
}

// extractToken extracts the JWT from the request. Devices submitting readings
// use the Authorization header; browser clients may fall back to the cookie.
func (am *AuthMiddleware) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	if token := c.Query("token"); token != "" {
		return token
	}

	if token, err := c.Cookie("auth_token"); err == nil {
		return token
	}

	return ""
}

func (am *AuthMiddleware) recordLogin(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	am.authService.RecordLogin(ctx, userID)
}

// GetIdentity returns the resolved identity from the request context.
func GetIdentity(c *gin.Context) (models.Identity, bool) {
	value, exists := c.Get("identity")
	if !exists {
		return models.Identity{}, false
	}

	identity, ok := value.(models.Identity)
	return identity, ok
}

// GetCurrentUserID returns the authenticated user ID from the request context.
func GetCurrentUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		return "", false
	}

	userIDStr, ok := userID.(string)
	return userIDStr, ok
}
